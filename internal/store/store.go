// Package store implements the transactional note/subject store: schema
// management with additive migrations, denormalized search rows kept
// trigger-consistent with the association table, the TF-IDF term index, and
// the full-text document index mutated inside the same write transactions.
package store

import (
	"database/sql"
	"fmt"
)

// Store owns the sole write connection. All mutation is expected to happen
// from one logical owner; the connection pool is pinned to a single
// connection to keep that discipline visible at the sql layer too.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and brings the schema, the
// denormalized search table, the term index, and the document index up to
// date. Any DDL or backfill failure is fatal: there is no partial-schema
// state worth recovering from.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close optimizes and closes the write connection.
func (s *Store) Close() error {
	_, _ = s.db.Exec(`PRAGMA optimize`)
	return s.db.Close()
}

// ReadStore is an independent read-only view of the same database, owned by
// the search worker thread. It never writes and never shares the Store's
// connection.
type ReadStore struct {
	db *sql.DB
}

// OpenReadOnly opens a read-only connection to the database at path.
func OpenReadOnly(path string) (*ReadStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open read-only db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping read-only: %w", err)
	}
	return &ReadStore{db: db}, nil
}

// Close closes the read-only connection.
func (r *ReadStore) Close() error {
	return r.db.Close()
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx that
// the read helpers need.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
