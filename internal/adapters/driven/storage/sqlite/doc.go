// Package sqlite provides a unified SQLite-based implementation of the
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - SourceStore: Sources and the status machine
//   - ChunkStore: Chunks, embeddings and retrieval candidates
//   - InsightStore: Generated insights
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Chunks and insights reference their source with ON DELETE CASCADE.
//
// # Data Location
//
// By default, the database is stored at ~/.dossier/data/dossier.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Status changes read and write inside one transaction.
package sqlite
