// Package store persists review sessions, raw search results, processed
// results, duplicate groups, and processing runs in SQLite.
//
// The Store manages database connections, schema initialization, the
// one-active-run-per-session guard, counter updates, and the append-only run
// event feed. Raw results are treated as immutable input owned by the search
// executor; everything else is owned and mutated exclusively by the
// processing pipeline.
//
// Treat this package as the single source of truth for run and result
// semantics; when you add new statuses or columns, update schema.sql and bump
// schemaVersion.
package store
