//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

// Without the sqlite_fts5 build tag the document index degrades to a LIKE
// scan over notes.text. The note text already lives in the authoritative
// table, so mutation hooks have nothing extra to maintain.

func initDocIndex(_ *sql.DB) error { return nil }

func docIndexInsert(_ *sql.Tx, _ int64, _ string) error { return nil }

func docIndexDelete(_ *sql.Tx, _ int64) error { return nil }

func backfillDocIndex(_ *sql.DB) error { return nil }

func rebuildDocIndex(_ *sql.DB) error { return nil }

// SearchRowIDs performs a LIKE-based scan per group (fallback when FTS5 is
// not compiled in). Ranking degrades to recency.
func (r *ReadStore) SearchRowIDs(groups []string, limit int) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, group := range groups {
		rows, err := r.db.Query(`
			SELECT rowid FROM notes
			WHERE text LIKE '%' || ? || '%'
			ORDER BY created_at DESC
			LIMIT ?`, group, limit)
		if err != nil {
			return nil, fmt.Errorf("store: fallback search: %w", err)
		}
		for rows.Next() {
			var rowid int64
			if err := rows.Scan(&rowid); err != nil {
				rows.Close()
				return nil, err
			}
			if _, ok := seen[rowid]; ok {
				continue
			}
			seen[rowid] = struct{}{}
			ids = append(ids, rowid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		if len(ids) >= limit {
			ids = ids[:limit]
			break
		}
	}
	return ids, nil
}
