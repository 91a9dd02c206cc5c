// Package registry keeps an in-memory mirror of collection sessions and
// enforces PIN uniqueness before anything reaches the store.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/timex"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

// Store is the session surface of the gateway.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	ListSessions(ctx context.Context) ([]models.Session, error)
	SetSessionActive(ctx context.Context, id int64, active bool) error
	DeleteSession(ctx context.Context, id int64) (models.DeleteResult, error)
	ResolvePin(ctx context.Context, pin string) (*models.Session, error)
}

// ModeSource reports storage mode switches; *gateway.Gateway implements it.
type ModeSource interface {
	OnModeChange(fn func(gateway.Mode))
}

type Registry struct {
	store Store
	log   logging.Logger
	loc   *time.Location

	mu       sync.RWMutex
	sessions []models.Session
	pins     map[string]int64
}

// New returns an empty registry. loc decides where "today" rolls over for
// live counter updates.
func New(store Store, l logging.Logger, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.Local
	}
	return &Registry{
		store: store,
		log:   l.With("module", "registry"),
		loc:   loc,
		pins:  map[string]int64{},
	}
}

// PinAvailable reports whether pin is well formed and unused according to
// the mirror. The store still has the final word on Create.
func (r *Registry) PinAvailable(pin string) error {
	if err := validation.ValidatePin(pin); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, taken := r.pins[pin]; taken {
		return common.ErrDuplicatePin
	}
	return nil
}

// Create adds a session. An empty title defaults to "Session <pin>".
func (r *Registry) Create(ctx context.Context, pin, title, description string, expiresAt *time.Time) (*models.Session, error) {
	pin = strings.TrimSpace(pin)
	if err := r.PinAvailable(pin); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("Session %s", pin)
	}
	s := &models.Session{Pin: pin, Title: title, ExpiresAt: expiresAt, IsActive: true}
	if d := strings.TrimSpace(description); d != "" {
		s.Description = &d
	}

	if err := r.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions = append(r.sessions, *s)
	models.SortSessions(r.sessions)
	r.pins[s.Pin] = s.ID
	r.mu.Unlock()

	r.log.Info(ctx, "session created", "id", s.ID, "pin", s.Pin)
	return s, nil
}

// Reload rebuilds the mirror from the store and returns it: active
// sessions first, then by PIN.
func (r *Registry) Reload(ctx context.Context) ([]models.Session, error) {
	list, err := r.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	models.SortSessions(list)

	pins := make(map[string]int64, len(list))
	for _, s := range list {
		pins[s.Pin] = s.ID
	}

	r.mu.Lock()
	r.sessions = list
	r.pins = pins
	r.mu.Unlock()

	return r.Sessions(), nil
}

// Follow reloads the mirror after every mode switch. The remote and local
// stores keep separate session namespaces, so ids from one never resolve
// in the other.
func (r *Registry) Follow(src ModeSource) {
	src.OnModeChange(func(m gateway.Mode) {
		ctx := context.Background()
		if _, err := r.Reload(ctx); err != nil {
			r.log.Warn(ctx, "failed to reload sessions after mode switch", "mode", m, "error", err)
		}
	})
}

// ListAll is Reload under the name admin surfaces use.
func (r *Registry) ListAll(ctx context.Context) ([]models.Session, error) {
	return r.Reload(ctx)
}

// Sessions returns a copy of the mirror.
func (r *Registry) Sessions() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Session(nil), r.sessions...)
}

func (r *Registry) Lookup(id int64) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return models.Session{}, false
}

func (r *Registry) SetActive(ctx context.Context, id int64, active bool) error {
	if err := r.store.SetSessionActive(ctx, id, active); err != nil {
		return err
	}
	r.patch(id, func(s *models.Session) { s.IsActive = active })
	r.mu.Lock()
	models.SortSessions(r.sessions)
	r.mu.Unlock()
	return nil
}

// Delete removes the session and its entries. The PIN becomes available
// again once the store confirms.
func (r *Registry) Delete(ctx context.Context, id int64) (models.DeleteResult, error) {
	res, err := r.store.DeleteSession(ctx, id)
	if err != nil {
		return res, err
	}

	r.mu.Lock()
	for i, s := range r.sessions {
		if s.ID == id {
			delete(r.pins, s.Pin)
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.log.Info(ctx, "session deleted", "id", id, "entries", res.Deleted)
	return res, nil
}

// ResolvePin returns the active, unexpired session for pin.
func (r *Registry) ResolvePin(ctx context.Context, pin string) (*models.Session, error) {
	return r.store.ResolvePin(ctx, strings.TrimSpace(pin))
}

// RecordEntry applies one live entry to the derived counters of its
// session. The today counter restarts when the previous entry fell on
// another day.
func (r *Registry) RecordEntry(e models.Entry, now time.Time) {
	if e.SessionID == nil {
		return
	}
	r.patch(*e.SessionID, func(s *models.Session) {
		s.TotalEntries++
		if s.LastEntryAt != nil && timex.SameDay(*s.LastEntryAt, now, r.loc) {
			s.TodayEntries++
		} else {
			s.TodayEntries = 1
		}
		if s.LastEntryAt == nil || e.CreatedAt.After(*s.LastEntryAt) {
			ts := e.CreatedAt
			s.LastEntryAt = &ts
		}
	})
}

func (r *Registry) patch(id int64, fn func(*models.Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			fn(&r.sessions[i])
			return
		}
	}
}
