package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/form"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

const lastSubmissionCookie = "lk_last_submission"

// cookieMemory keeps a visitor's last submission time in a cookie, the
// browser-side counterpart of the local store slot.
type cookieMemory struct {
	r      *http.Request
	w      http.ResponseWriter
	maxAge time.Duration
}

func (m *cookieMemory) LastSubmission(context.Context) (time.Time, bool, error) {
	c, err := m.r.Cookie(lastSubmissionCookie)
	if err != nil {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, c.Value)
	if err != nil {
		// an unreadable cookie counts as no previous submission
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (m *cookieMemory) RecordSubmission(_ context.Context, at time.Time) error {
	http.SetCookie(m.w, &http.Cookie{
		Name:     lastSubmissionCookie,
		Value:    at.UTC().Format(time.RFC3339Nano),
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// controller builds the form controller of one request.
func (s *Server) controller(w http.ResponseWriter, r *http.Request) *form.Controller {
	mem := &cookieMemory{r: r, w: w, maxAge: s.opts.ReturnWindow}
	return form.New(s.store, mem,
		form.WithLogger(s.log),
		form.WithSuccessDisplay(0),
		form.WithReturnWindow(s.opts.ReturnWindow),
		form.WithClock(s.now),
	)
}

type submitRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Pin   string `json:"pin"`
}

type submitResponse struct {
	State    string        `json:"state"`
	Message  string        `json:"message"`
	Degraded bool          `json:"degraded"`
	Entry    *models.Entry `json:"entry,omitempty"`
	Field    string        `json:"field,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	out, err := s.controller(w, r).Submit(r.Context(), form.Input{
		Name:      req.Name,
		Phone:     req.Phone,
		Pin:       req.Pin,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	resp := submitResponse{
		State:    out.State.String(),
		Message:  out.Message,
		Degraded: out.Degraded,
		Entry:    out.Entry,
		Field:    out.Field,
	}
	if err != nil {
		status, code := classify(err)
		resp.Error = code
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleReturning(w http.ResponseWriter, r *http.Request) {
	returning, err := s.controller(w, r).ReturningVisitor(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := map[string]interface{}{"returning": returning}
	if returning {
		resp["message"] = form.MsgReturning
	}
	writeJSON(w, http.StatusOK, resp)
}

// clientIP prefers the first X-Forwarded-For hop over the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
