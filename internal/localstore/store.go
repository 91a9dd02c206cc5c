// Package localstore is the on-device fallback store: a small SQLite table
// of named slots, each holding one whole serialized value.
//
// Every browsing context (a process, or a Handle inside one) reads and
// writes whole slot values. There is no partial update primitive, so
// writers read-modify-write the full value. Writes through one Handle raise
// storage events on every other Handle of the same Store, never on the
// writer itself.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Slot names.
const (
	SlotEntries        = "entries"
	SlotSessions       = "sessions"
	SlotLastSubmission = "last_submission"
	SlotAppVersion     = "app_version"
)

// DefaultQuota matches the usual per-origin limit of browser storage.
const DefaultQuota int64 = 5 << 20

// ErrUnchanged may be returned from an Update callback to skip the write.
var ErrUnchanged = errors.New("slot unchanged")

// Event is a storage notification. Value is nil when the slot was removed.
type Event struct {
	Slot   string
	Origin string
	Value  []byte
}

type watcher struct {
	slot   string
	origin string
	ch     chan Event
}

// Store owns the SQLite database and fans storage events out to handles.
type Store struct {
	db     *sql.DB
	quota  int64
	logger logging.Logger

	mu       sync.Mutex
	watchers map[int]*watcher
	nextID   int
}

type Option func(*Store)

// WithQuota caps the size of a single slot value in bytes.
func WithQuota(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.quota = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l.With("module", "localstore") }
}

// Open opens (creating if needed) the SQLite file at path. The slots table
// is created by the sqlite migration set; see repomanager.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// One connection serialises read-modify-write cycles inside this process.
	db.SetMaxOpenConns(1)
	return New(db, opts...), nil
}

// New wraps an already opened database.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		quota:    DefaultQuota,
		logger:   logging.Nop(),
		watchers: make(map[int]*watcher),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DB exposes the underlying database for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	s.mu.Lock()
	for id, w := range s.watchers {
		close(w.ch)
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Open returns a new browsing context on the store.
func (s *Store) Open() *Handle {
	return &Handle{s: s, origin: uuid.NewString()}
}

func (s *Store) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		if w.slot != ev.Slot || w.origin == ev.Origin {
			continue
		}
		select {
		case w.ch <- ev:
		default:
			// the poller catches up on anything dropped here
			s.logger.Debug(context.Background(), "storage event dropped", "slot", ev.Slot)
		}
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

func (s *Store) get(ctx context.Context, db dbx.DBTX, slot string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read slot "+slot, err)
	}
	return value, nil
}

func (s *Store) put(ctx context.Context, db dbx.DBTX, slot, origin string, value []byte) error {
	if int64(len(value)) > s.quota {
		return fmt.Errorf("write slot %s: %w: quota of %d bytes exceeded", slot, common.ErrStorageFailure, s.quota)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO slots (name, value, origin, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (name) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin,
			updated_at = excluded.updated_at`,
		slot, value, origin)
	if err != nil {
		return storageErr("write slot "+slot, err)
	}
	return nil
}
