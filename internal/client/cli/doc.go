// Package cli provides the interactive leadkeeper admin console.
//
// It wires configuration, the storage stack, the admin dashboard and an
// interactive REPL. The dashboard follows new entries live while the
// console is open, over the notifier of the current storage mode; the
// follow command streams them from a running server over gRPC instead.
//
// Key features:
//   - List, select, create, toggle and delete collection sessions
//   - List entries and statistics of the selection
//   - Export to CSV, JSON or text files, or to S3 with a presigned link
//   - Clear every entry, with a confirmation naming the affected store
//   - Collect an entry at the console through the submission form
//
// Destructive commands ask for confirmation on a terminal; when stdin is
// not a terminal they are refused unless the console runs with -yes.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
