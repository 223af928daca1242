// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database:
//
//   - TaskQueue: Durable background tasks with priority, backoff and leases
//   - DocumentStore: Links, notes, chunks, folders and tags
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory, named NNN_description.up.sql. Applied versions are
// recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.stash/data/stash.db
//
// # Concurrency
//
// Claims are a single UPDATE ... RETURNING statement and transactions begin
// IMMEDIATE, so workers in one or many processes never claim the same task.
// The connection pool is limited to one connection per process.
package sqlite
