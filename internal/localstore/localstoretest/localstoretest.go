// Package localstoretest opens migrated local stores for tests.
package localstoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/migrations"
	"github.com/pressly/goose/v3"
)

// New returns a Store backed by a fresh file in t.TempDir with the slot
// table created. The store is closed on cleanup.
func New(t testing.TB, opts ...localstore.Option) *localstore.Store {
	t.Helper()

	s, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"), opts...)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("goose dialect: %v", err)
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.UpContext(context.Background(), s.DB(), migrations.SQLiteDir); err != nil {
		t.Fatalf("migrate local store: %v", err)
	}
	return s
}
