//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// The document index is an FTS5 virtual table with a trigram tokenizer,
// keyed by the notes table rowid. It is written in the same transaction as
// the note row, so the index never trails a committed write.

func initDocIndex(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			text,
			tokenize = 'trigram'
		);
	`)
	return err
}

func docIndexInsert(tx *sql.Tx, rowid int64, text string) error {
	if _, err := tx.Exec(`INSERT INTO notes_fts (rowid, text) VALUES (?, ?)`, rowid, text); err != nil {
		return apperr.Storage("insert document", err)
	}
	return nil
}

func docIndexDelete(tx *sql.Tx, rowid int64) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE rowid = ?`, rowid); err != nil {
		return apperr.Storage("delete document", err)
	}
	return nil
}

// backfillDocIndex rebuilds the document index from the notes table when it
// is empty but the notes table is not (fresh index over an existing store).
func backfillDocIndex(db *sql.DB) error {
	var docs, notes int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes_fts`).Scan(&docs); err != nil {
		return fmt.Errorf("store: count documents: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&notes); err != nil {
		return fmt.Errorf("store: count notes: %w", err)
	}
	if docs != 0 || notes == 0 {
		return nil
	}
	return rebuildDocIndex(db)
}

func rebuildDocIndex(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin document rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM notes_fts`); err != nil {
		return fmt.Errorf("store: clear documents: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (rowid, text) SELECT rowid, text FROM notes`); err != nil {
		return fmt.Errorf("store: refill documents: %w", err)
	}
	return tx.Commit()
}

// SearchRowIDs runs a disjunctive full-text query over the sanitized groups
// and returns matching row identifiers, best rank first.
func (r *ReadStore) SearchRowIDs(groups []string, limit int) ([]int64, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(groups))
	for i, g := range groups {
		quoted[i] = `"` + g + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := r.db.Query(`
		SELECT rowid FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("store: document search: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var rowid int64
		if err := rows.Scan(&rowid); err != nil {
			return nil, err
		}
		ids = append(ids, rowid)
	}
	return ids, rows.Err()
}
