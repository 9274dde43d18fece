// Package store provides durable storage for the golf analytics governance
// kernel.
//
// The store implements an append-only fact log with:
//   - Templates and course snapshots: content-addressed artifacts keyed by
//     the SHA-256 of their canonical JSON
//   - Sessions, shots and club sub-sessions: practice facts and their
//     classification summaries
//   - Rounds, players, round events and hole scores: play facts, where a
//     correction is a newer hole score row
//   - Template aliases and club stats projections: mutable metadata and
//     disposable derived data, the only tables that accept UPDATE/DELETE
//
// # Immutability
//
// Fact tables are protected twice. Every write goes through a statement
// guard that rejects UPDATE, DELETE, REPLACE and upserts against a fact
// table before the driver sees it, and every fact table carries BEFORE
// UPDATE and BEFORE DELETE triggers raising "immutability violation:
// <table>" for writes that bypass the guard. Both surface as
// *kernel.ImmutabilityViolation.
//
// # Dialects
//
//   - sqlite3: github.com/mattn/go-sqlite3 (default)
//   - sqlite: modernc.org/sqlite, pure Go
//   - pgx: PostgreSQL through github.com/jackc/pgx/v5/stdlib
//
// SQLite databases are configured with WAL mode, synchronous=NORMAL, a busy
// timeout, foreign key enforcement and a single connection so there is one
// writer at a time.
//
// # Deterministic Query Results
//
// Every list query has an explicit ORDER BY ending in a unique column, so
// reads are stable across dialects and runs.
package store
