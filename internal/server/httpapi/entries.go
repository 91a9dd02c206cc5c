package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/dmitrijs2005/leadkeeper/internal/export"
)

type entriesResponse struct {
	Mode    string          `json:"mode"`
	Count   int             `json:"count"`
	Entries []export.Record `json:"entries"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse{Mode: string(s.store.Mode()), Count: len(rows), Entries: rows})
}

// rows loads the entries of the requested session, newest first.
func (s *Server) rows(w http.ResponseWriter, r *http.Request) ([]export.Record, bool) {
	sessionID, ok := sessionFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_session_id")
		return nil, false
	}
	list, err := s.store.QueryEntries(r.Context(), sessionID)
	if err != nil {
		writeFailure(w, err)
		return nil, false
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return export.FromEntries(list), true
}

func (s *Server) handleClearEntries(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.DeleteAllEntries(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "failed to clear entries", "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	res, err := s.store.DeleteEntry(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_session_id")
		return
	}
	stats, err := s.store.Stats(r.Context(), sessionID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the export as a download, or with target=s3 uploads
// it and returns a temporary link.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format")
		return
	}
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := export.Write(&buf, f, rows, now, s.opts.Location); err != nil {
		writeFailure(w, err)
		return
	}

	if r.URL.Query().Get("target") == "s3" {
		if s.opts.Uploader == nil {
			writeError(w, http.StatusNotImplemented, "object_storage_not_configured")
			return
		}
		key, url, err := s.opts.Uploader.Upload(r.Context(), f, buf.Bytes(), now)
		if err != nil {
			s.log.Error(r.Context(), "export upload failed", "error", err)
			writeError(w, http.StatusBadGateway, "upload_failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "url": url, "count": len(rows)})
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(f, now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
