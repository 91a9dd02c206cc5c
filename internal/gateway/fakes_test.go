package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/sessions"
)

// fakeEntries is an in-memory remote entry table with switchable failures.
type fakeEntries struct {
	mu     sync.Mutex
	rows   []models.Entry
	nextID int64

	insertErr error
	listErr   error
	countErr  error
	// bulkNoop makes DeleteMatching report success without deleting.
	bulkNoop bool
	// stubborn rows survive DeleteByID.
	stubborn map[int64]bool
	phones   map[string]bool
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{stubborn: map[int64]bool{}, phones: map[string]bool{}}
}

func match(f entries.Filter, e models.Entry) bool {
	if !e.InSession(f.SessionID) {
		return false
	}
	return f.Since == nil || !e.CreatedAt.Before(*f.Since)
}

func (r *fakeEntries) Insert(_ context.Context, e *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, *e)
	r.phones[e.Phone] = true
	return nil
}

func (r *fakeEntries) List(_ context.Context, f entries.Filter) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Entry
	for _, e := range r.rows {
		if match(f, e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeEntries) Count(_ context.Context, f entries.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	var n int64
	for _, e := range r.rows {
		if match(f, e) {
			n++
		}
	}
	return n, nil
}

func (r *fakeEntries) IDs(_ context.Context, f entries.Filter) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, e := range r.rows {
		if match(f, e) {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (r *fakeEntries) DeleteMatching(_ context.Context, f entries.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bulkNoop {
		return 0, nil
	}
	kept := r.rows[:0]
	var n int64
	for _, e := range r.rows {
		if match(f, e) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.rows = kept
	return n, nil
}

func (r *fakeEntries) DeleteByID(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stubborn[id] {
		return 0, nil
	}
	for i, e := range r.rows {
		if e.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeEntries) Stats(_ context.Context, f entries.Filter, dayStart, now time.Time) (models.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return models.Stats{}, r.countErr
	}
	var s models.Stats
	for _, e := range r.rows {
		if match(f, e) {
			s.Add(e.CreatedAt, dayStart, now)
		}
	}
	return s, nil
}

func (r *fakeEntries) PhoneExists(_ context.Context, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phones[phone], nil
}

// fakeSessions is an in-memory remote session table.
type fakeSessions struct {
	mu     sync.Mutex
	byID   map[int64]models.Session
	nextID int64
	err    error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[int64]models.Session{}}
}

func (r *fakeSessions) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.byID {
		if existing.Pin == s.Pin {
			return common.ErrDuplicatePin
		}
	}
	r.nextID++
	s.ID = r.nextID
	r.byID[s.ID] = *s
	return nil
}

func (r *fakeSessions) GetByPin(_ context.Context, pin string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range r.byID {
		if s.Pin == pin {
			return &s, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeSessions) GetByID(_ context.Context, id int64) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSessions) List(_ context.Context) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Session
	for _, s := range r.byID {
		out = append(out, s)
	}
	models.SortSessions(out)
	return out, nil
}

func (r *fakeSessions) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	s.IsActive = active
	r.byID[id] = s
	return nil
}

func (r *fakeSessions) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	entries  *fakeEntries
	sessions *fakeSessions
	pingErr  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: newFakeEntries(), sessions: newFakeSessions()}
}

func (m *fakeRemote) RunMigrations(context.Context) error { return nil }
func (m *fakeRemote) Entries() entries.Repository          { return m.entries }
func (m *fakeRemote) Sessions() sessions.Repository        { return m.sessions }

func (m *fakeRemote) setPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *fakeRemote) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

type recordingChannel struct {
	mu  sync.Mutex
	got []models.Entry
}

func (c *recordingChannel) Post(e models.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, e)
}

func (c *recordingChannel) Publish(_ context.Context, e models.Entry) error {
	c.Post(e)
	return nil
}

func (c *recordingChannel) entries() []models.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Entry(nil), c.got...)
}
