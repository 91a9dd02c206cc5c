// Package migrations embeds the goose migration sets for the remote
// PostgreSQL store and the on-device SQLite slot store.
package migrations

import "embed"

// Postgres holds the remote schema: sessions, entries, the statistics view,
// the aggregate functions and the insert notification trigger.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the local slot table.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Directories inside the embedded filesystems.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
