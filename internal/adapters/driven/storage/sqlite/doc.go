// Package sqlite implements driven.VectorIndex on an embedded SQLite file.
//
// The adapter uses modernc.org/sqlite, a pure Go SQLite implementation, so
// the binary stays CGO-free. Vectors are stored as little-endian float32
// BLOBs next to their metadata as JSON. Scope filters are pushed down with
// json_extract and similarity is computed in Go over the filtered rows.
//
// # Schema
//
// The schema is managed through versioned migrations in migrations/. Applied
// versions are recorded in schema_migrations.
//
// # Data Location
//
// By default the database is stored at ~/.sercha-rag/data/vectors.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. The pool is limited to a single
// connection so writers queue instead of failing with SQLITE_BUSY.
package sqlite
