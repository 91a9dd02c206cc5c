package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

const (
	eventBuffer    = 64
	keepAlivePause = 25 * time.Second
)

type entryEvent struct {
	models.Entry
	FormattedPhone string `json:"formatted_phone"`
}

// handleEvents streams new entries as server-sent events, optionally
// limited to one session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_session_id")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	ctx := r.Context()
	events := make(chan models.Entry, eventBuffer)
	feed := s.notifier.Subscribe(ctx, func(e models.Entry) {
		if !e.InSession(sessionID) {
			return
		}
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})
	defer feed.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ready\ndata: {\"mode\":%q}\n\n", s.store.Mode())
	flusher.Flush()

	s.log.Debug(ctx, "event stream opened", "feed", feed.ID, "transport", feed.Transport())

	keepAlive := time.NewTicker(keepAlivePause)
	defer keepAlive.Stop()

	for {
		select {
		case e := <-events:
			payload, err := json.Marshal(entryEvent{Entry: e, FormattedPhone: validation.FormatPhone(e.Phone)})
			if err != nil {
				s.log.Warn(ctx, "failed to encode entry event", "id", e.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: entry\ndata: %s\n\n", e.ID, payload)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
