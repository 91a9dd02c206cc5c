// Package admin drives the admin dashboard: the filtered entry list, the
// session list and the statistics, kept live by the change notifier.
package admin

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/export"
	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/notifier"
	"github.com/dmitrijs2005/leadkeeper/internal/registry"
	"github.com/dmitrijs2005/leadkeeper/internal/timex"
)

// Store is the entry surface of the gateway the view reads and clears.
type Store interface {
	Mode() gateway.Mode
	RecentEntries(ctx context.Context, sessionID *int64, limit int) ([]models.Entry, error)
	Stats(ctx context.Context, sessionID *int64) (models.Stats, error)
	DeleteAllEntries(ctx context.Context) (models.DeleteResult, error)
}

// DefaultListLimit is how many of the newest entries a view shows.
const DefaultListLimit = 100

type Option func(*View)

func WithLogger(l logging.Logger) Option {
	return func(v *View) { v.log = l }
}

func WithLocation(loc *time.Location) Option {
	return func(v *View) { v.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithListLimit caps how many of the newest entries the view keeps.
func WithListLimit(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.limit = n
		}
	}
}

// OnChange registers fn to run after the mirror changes, either from a
// reload or from a live entry.
func OnChange(fn func()) Option {
	return func(v *View) { v.onChange = fn }
}

// View is one admin dashboard. Its mirror holds the entries of the selected
// session, newest first.
type View struct {
	store    Store
	sessions *registry.Registry
	notifier *notifier.Notifier
	log      logging.Logger
	loc      *time.Location
	now      func() time.Time
	onChange func()
	limit    int

	// ctx lives as long as the view; Close cancels it, aborting running
	// deletion loops.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entries  []models.Entry
	seen     map[int64]struct{}
	selected *int64
	stats    models.Stats
	feed     *notifier.Feed
	// loading counts running loads; arrived collects the visible entries
	// delivered meanwhile so the reloaded mirror does not drop them.
	loading int
	arrived []models.Entry
}

func New(store Store, sessions *registry.Registry, n *notifier.Notifier, opts ...Option) *View {
	v := &View{
		store:    store,
		sessions: sessions,
		notifier: n,
		log:      logging.Nop(),
		loc:      time.Local,
		now:      time.Now,
		onChange: func() {},
		limit:    DefaultListLimit,
		seen:     map[int64]struct{}{},
	}
	for _, o := range opts {
		o(v)
	}
	v.log = v.log.With("module", "admin")
	v.ctx, v.cancel = context.WithCancel(context.Background())
	return v
}

// Open loads sessions, subscribes to new entries and then loads entries
// and statistics. Subscribing first means an entry written while the list
// loads is either in the list or delivered, never neither.
func (v *View) Open(ctx context.Context) error {
	if _, err := v.sessions.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	feed := v.notifier.Subscribe(v.ctx, v.HandleEntry)
	v.mu.Lock()
	v.feed = feed
	v.mu.Unlock()

	if err := v.load(ctx); err != nil {
		return err
	}

	v.log.Info(ctx, "admin view opened", "mode", v.store.Mode(), "transport", feed.Transport())
	return nil
}

// load replaces the mirror and statistics for the current selection.
func (v *View) load(ctx context.Context) error {
	v.mu.Lock()
	selected := v.selected
	v.loading++
	v.mu.Unlock()

	list, stats, err := v.fetch(ctx, selected)

	v.mu.Lock()
	v.loading--
	arrived := v.arrived
	if v.loading == 0 {
		v.arrived = nil
	}
	if err != nil {
		v.mu.Unlock()
		return err
	}

	// entries delivered after the query ran are not in list; an entry
	// that missed the list also missed the statistics queried before it
	listed := make(map[int64]struct{}, len(list))
	for _, e := range list {
		listed[e.ID] = struct{}{}
	}
	for _, e := range arrived {
		if _, ok := listed[e.ID]; ok || !e.InSession(selected) {
			continue
		}
		list = append(list, e)
		now := v.now().In(v.loc)
		stats.Add(e.CreatedAt, timex.StartOfDay(now), now)
	}

	// local results come back in store order
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > v.limit {
		list = list[:v.limit]
	}

	v.entries = list
	for _, e := range list {
		v.seen[e.ID] = struct{}{}
	}
	v.stats = stats
	v.mu.Unlock()

	v.onChange()
	return nil
}

// fetch reads statistics before entries, so an entry the list missed was
// missed by the statistics too.
func (v *View) fetch(ctx context.Context, selected *int64) ([]models.Entry, models.Stats, error) {
	stats, err := v.store.Stats(ctx, selected)
	if err != nil {
		return nil, models.Stats{}, fmt.Errorf("failed to load statistics: %w", err)
	}
	list, err := v.store.RecentEntries(ctx, selected, v.limit)
	if err != nil {
		return nil, models.Stats{}, fmt.Errorf("failed to load entries: %w", err)
	}
	return list, stats, nil
}

// HandleEntry applies one delivered entry. Each id is handled once. The
// session counters move even when the entry is outside the selection.
func (v *View) HandleEntry(e models.Entry) {
	now := v.now().In(v.loc)

	v.mu.Lock()
	if _, dup := v.seen[e.ID]; dup {
		v.mu.Unlock()
		return
	}
	v.seen[e.ID] = struct{}{}

	visible := e.InSession(v.selected)
	if visible {
		i := sort.Search(len(v.entries), func(i int) bool { return !v.entries[i].CreatedAt.After(e.CreatedAt) })
		v.entries = append(v.entries, models.Entry{})
		copy(v.entries[i+1:], v.entries[i:])
		v.entries[i] = e
		if len(v.entries) > v.limit {
			v.entries = v.entries[:v.limit]
		}
		v.stats.Add(e.CreatedAt, timex.StartOfDay(now), now)
		if v.loading > 0 {
			v.arrived = append(v.arrived, e)
		}
	}
	v.mu.Unlock()

	v.sessions.RecordEntry(e, now)
	v.log.Debug(v.ctx, "entry received", "id", e.ID, "visible", visible)
	v.onChange()
}

// SelectSession filters the view to one session; nil shows every entry.
func (v *View) SelectSession(ctx context.Context, id *int64) error {
	v.mu.Lock()
	if id != nil {
		sel := *id
		id = &sel
	}
	v.selected = id
	v.mu.Unlock()
	return v.load(ctx)
}

func (v *View) Selected() *int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return nil
	}
	id := *v.selected
	return &id
}

// Rows returns the mirror as numbered display records.
func (v *View) Rows() []export.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return export.FromEntries(v.entries)
}

func (v *View) Stats() models.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

func (v *View) Sessions() []models.Session {
	return v.sessions.Sessions()
}

func (v *View) Mode() gateway.Mode {
	return v.store.Mode()
}

// ForceRefresh reloads sessions and entries from the store.
func (v *View) ForceRefresh(ctx context.Context) error {
	if _, err := v.sessions.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	return v.load(ctx)
}

// CreateSession adds a session and selects it.
func (v *View) CreateSession(ctx context.Context, pin, title, description string, expiresAt *time.Time) (*models.Session, error) {
	s, err := v.sessions.Create(ctx, pin, title, description, expiresAt)
	if err != nil {
		return nil, err
	}
	return s, v.SelectSession(ctx, &s.ID)
}

// ToggleSession flips the active flag of a session.
func (v *View) ToggleSession(ctx context.Context, id int64) error {
	s, ok := v.sessions.Lookup(id)
	if !ok {
		return fmt.Errorf("session %d: %w", id, common.ErrNotFound)
	}
	if err := v.sessions.SetActive(ctx, id, !s.IsActive); err != nil {
		return err
	}
	v.onChange()
	return nil
}

// DeleteConfirmation is the prompt shown before DeleteSession.
func (v *View) DeleteConfirmation(id int64) (string, error) {
	s, ok := v.sessions.Lookup(id)
	if !ok {
		return "", fmt.Errorf("session %d: %w", id, common.ErrNotFound)
	}
	return fmt.Sprintf("Delete session %q (PIN %s) and its %d entries? This cannot be undone.",
		s.Title, s.Pin, s.TotalEntries), nil
}

// DeleteSession removes a session with its entries. Closing the view
// aborts a running deletion.
func (v *View) DeleteSession(ctx context.Context, id int64) (models.DeleteResult, error) {
	ctx, stop := v.opContext(ctx)
	defer stop()

	res, err := v.sessions.Delete(ctx, id)
	if err == nil {
		v.mu.Lock()
		if v.selected != nil && *v.selected == id {
			v.selected = nil
		}
		v.mu.Unlock()
	}
	if lerr := v.load(ctx); lerr != nil && err == nil {
		err = lerr
	}
	return res, err
}

// ClearConfirmation is the prompt shown before ClearAll. It names the
// store that will be cleared.
func (v *View) ClearConfirmation() string {
	if v.store.Mode() == gateway.ModeRemote {
		return "Delete ALL entries from the shared database? Every admin will lose them. This cannot be undone."
	}
	return "Delete all entries stored on this device? Entries already in the shared database are not affected."
}

// ClearAll deletes every entry in the active store. A partial deletion is
// returned as an error carrying the remaining count.
func (v *View) ClearAll(ctx context.Context) (models.DeleteResult, error) {
	ctx, stop := v.opContext(ctx)
	defer stop()

	res, err := v.store.DeleteAllEntries(ctx)
	if err != nil {
		v.log.Error(ctx, "failed to clear entries", "error", err)
	} else {
		v.log.Info(ctx, "entries cleared", "deleted", res.Deleted)
	}
	if _, rerr := v.sessions.Reload(ctx); rerr != nil {
		v.log.Warn(ctx, "failed to reload sessions", "error", rerr)
	}
	if lerr := v.load(ctx); lerr != nil && err == nil {
		err = lerr
	}
	return res, err
}

// Export writes the visible rows in format f.
func (v *View) Export(_ context.Context, f export.Format, w io.Writer) error {
	return export.Write(w, f, v.Rows(), v.now(), v.loc)
}

// Close unsubscribes and cancels running deletions. Row deletions already
// issued are allowed to finish.
func (v *View) Close() {
	v.cancel()
	v.mu.Lock()
	feed := v.feed
	v.feed = nil
	v.mu.Unlock()
	if feed != nil {
		feed.Close()
	}
}

// opContext returns a context cancelled by either ctx or Close.
func (v *View) opContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// MobileURL is the submission link handed to visitors of a session.
func MobileURL(base, pin string) string {
	return strings.TrimRight(base, "/") + "/mobile?pin=" + url.QueryEscape(pin)
}
