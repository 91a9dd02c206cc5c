// Package repomanager vends the entry and session repositories of one
// storage backend together with its schema migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/sessions"
	"github.com/pressly/goose/v3"
)

// RepositoryManager is one storage backend: remote Postgres or the local
// slot store.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Entries() entries.Repository
	Sessions() sessions.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}
