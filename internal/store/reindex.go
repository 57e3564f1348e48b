package store

import (
	"github.com/starford/othala/internal/apperr"
)

// Reindex rebuilds the derived search state from the authoritative tables:
// the term-occurrence counters and the full-text document index.
func (s *Store) Reindex() error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Storage("begin reindex", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fillWordOccurrenceTable(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit reindex", err)
	}

	if err := rebuildDocIndex(s.db); err != nil {
		return apperr.Storage("rebuild document index", err)
	}
	return nil
}
