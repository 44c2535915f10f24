// Package store is the columnar store facade (C1): schema bootstrap, bulk
// insert from in-memory tabular batches, and query execution over a
// persistent embedded SQL database.
//
// The original system is DuckDB-backed; no DuckDB driver exists in the
// dependency corpus this module was built from, so this facade is built on
// github.com/mattn/go-sqlite3 instead — see DESIGN.md for the substitution
// rationale. SQLite lacks DuckDB's native list-valued columns, so sample
// tags are normalised into a side table (sample_tags, created by
// schemaStatements in schema.go) rather than stored as an array column.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/visionset/lens/engine/domain"
)

// Store wraps a single process-wide database connection. It is a singleton
// per spec.md §5 "Shared resources": created once at startup, closed (with a
// forced flush) at shutdown.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite file at path (or ":memory:" for tests) and
// bootstraps the schema. Bootstrap is idempotent: safe to call on every
// process start.
func Open(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL"
	if path == ":memory:" {
		dsn = "file::memory:?mode=memory&cache=shared&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.NewError(domain.KindStoreError, "", fmt.Errorf("open store: %w", err))
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers; serialise here
	s := &Store{db: db}
	if err := s.bootstrap(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Flush forces pending writes to disk. Called on shutdown before Close so a
// container-kill does not truncate writes (§4.1).
func (s *Store) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return domain.NewError(domain.KindStoreError, "", fmt.Errorf("flush: %w", err))
	}
	return nil
}

// Close closes the underlying connection. Callers MUST Flush first.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sql.DB for components (C6 filter builder, C7-C9
// evaluators) that need to run ad-hoc parameterised queries.
func (s *Store) DB() *sql.DB { return s.db }

// wrapExecErr wraps a raw driver error, labelled with the query or
// operation that failed, in a StoreError (§4.1). The Kind is always
// StoreError.
func wrapExecErr(query string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewError(domain.KindStoreError, "", fmt.Errorf("query %q: %w", query, err))
}
