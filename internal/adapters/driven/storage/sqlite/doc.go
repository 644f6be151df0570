// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - ReportStore: diagnosis report persistence and session history
//   - ProgressStore: per-session diagnosis progress
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Reports and progress are stored as JSON bodies next to the columns used for lookups.
//
// # Data Location
//
// By default, the database is stored at ~/.sizhen/data/sizhen.db
//
// # Thread Safety
//
// All operations are thread-safe. The store runs on one connection in WAL
// mode, so progress updates never interleave.
package sqlite
