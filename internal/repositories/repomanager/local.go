package repomanager

import (
	"context"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/migrations"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/sessions"
	"github.com/pressly/goose/v3"
)

// LocalRepositoryManager vends slot-backed repositories bound to one
// browsing context of the local store.
type LocalRepositoryManager struct {
	store *localstore.Store
	h     *localstore.Handle
	loc   *time.Location
}

// NewLocalRepositoryManager binds repositories to a fresh handle on store.
// loc decides where local "today" counters roll over.
func NewLocalRepositoryManager(store *localstore.Store, loc *time.Location) *LocalRepositoryManager {
	return &LocalRepositoryManager{store: store, h: store.Open(), loc: loc}
}

// Handle is the browsing context the repositories write through.
func (m *LocalRepositoryManager) Handle() *localstore.Handle { return m.h }

func (m *LocalRepositoryManager) Entries() entries.Repository {
	return entries.NewLocalRepository(m.h)
}

func (m *LocalRepositoryManager) Sessions() sessions.Repository {
	return sessions.NewLocalRepository(m.h, m.loc)
}

func (m *LocalRepositoryManager) Ping(ctx context.Context) error {
	return m.store.DB().PingContext(ctx)
}

// RunMigrations creates the slot table.
func (m *LocalRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.store.DB(), migrations.SQLiteDir)
}
