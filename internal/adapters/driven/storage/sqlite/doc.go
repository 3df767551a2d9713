// Package sqlite provides a unified SQLite-based implementation of the
// driven store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - RecordStore: canonical records keyed by kind and serial number
//   - CheckpointStore: resumable sync cursors
//   - RunStatsStore: the append-only run audit log
//   - EmbeddingEntryStore: vector index positions and active generations
//   - SchedulerStore: watch task timetables
//   - QuotaCounter / RunLock: daily call counts and run locks shared by every
//     process that opens the same database file
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.lexharvest/data/lexharvest.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
