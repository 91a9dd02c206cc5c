package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/admin"
	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/go-chi/chi/v5"
)

type sessionView struct {
	models.Session
	MobileURL string `json:"mobile_url"`
}

func (s *Server) withURL(sess models.Session) sessionView {
	return sessionView{Session: sess, MobileURL: admin.MobileURL(s.opts.PublicBaseURL, sess.Pin)}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.ListAll(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]sessionView, 0, len(list))
	for _, sess := range list {
		out = append(out, s.withURL(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	Pin         string     `json:"pin"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	// the mirror may predate sessions created elsewhere
	if _, err := s.sessions.Reload(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Pin, req.Title, req.Description, req.ExpiresAt)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.withURL(*sess))
}

type patchSessionRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req patchSessionRequest
	if err := decodeJSON(r, &req); err != nil || req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	if err := s.sessions.SetActive(r.Context(), id, *req.IsActive); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "is_active": *req.IsActive})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	res, err := s.sessions.Delete(r.Context(), id)
	if err != nil {
		s.log.Error(r.Context(), "failed to delete session", "id", id, "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResolvePin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.ResolvePin(r.Context(), chi.URLParam(r, "pin"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if sess == nil {
		writeFailure(w, common.ErrInvalidSession)
		return
	}
	writeJSON(w, http.StatusOK, s.withURL(*sess))
}
