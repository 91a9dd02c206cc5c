package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Field     string `json:"field,omitempty"`
	Deleted   *int64 `json:"deleted,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, common.ErrDuplicatePin):
		return http.StatusConflict, "duplicate_pin"
	case errors.Is(err, common.ErrPartialDeletion):
		return http.StatusConflict, "partial_deletion"
	case errors.Is(err, common.ErrInvalidSession):
		return http.StatusUnprocessableEntity, "invalid_session"
	case errors.Is(err, common.ErrStorageFailure), errors.Is(err, common.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrBusy):
		return http.StatusTooManyRequests, "busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure reports err. A partial deletion carries its counts.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Error: code}

	var fe *common.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
		resp.Message = fe.Reason
	}
	var pd *common.PartialDeletionError
	if errors.As(err, &pd) {
		resp.Deleted = &pd.Deleted
		resp.Remaining = &pd.Remaining
		resp.Message = pd.Error()
	}
	writeJSON(w, status, resp)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id != 0
}

// sessionFilter reads the optional session_id query parameter.
func sessionFilter(r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("session_id")
	if raw == "" || raw == "all" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, false
	}
	return &id, true
}
