package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// ExplainSearchPlans prints the query plan of every find_notes dispatch
// variant, indented by plan tree depth. Intended for the explain CLI command;
// the output format follows sqlite's EXPLAIN QUERY PLAN rows.
func (s *Store) ExplainSearchPlans(w io.Writer) error {
	subject := NewSubjectID()
	cases := []struct {
		name   string
		search NoteSearch
	}{
		{"all notes", NoteSearch{}},
		{"notes with subject", NoteSearch{}.WithSubject(subject)},
		{"task notes", NoteSearch{}.WithTaskOnly(true)},
		{"task notes with subject", NoteSearch{}.WithSubject(subject).WithTaskOnly(true)},
	}

	for _, c := range cases {
		fmt.Fprintf(w, "Explain query plan for: %s\n", c.name)
		query, withSubject := QueryForSearch(c.search)
		if err := s.printQueryPlan(w, query, withSubject, subject); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (s *Store) printQueryPlan(w io.Writer, query string, withSubject bool, subject SubjectID) error {
	var args []any
	if withSubject {
		args = append(args, subject.String())
	}

	rows, err := s.db.Query("EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return apperr.Storage("explain query", err)
	}
	defer rows.Close()

	levels := map[int64]int{0: 0}
	for rows.Next() {
		var (
			id, parent, aux int64
			detail          string
		)
		if err := rows.Scan(&id, &parent, &aux, &detail); err != nil {
			return apperr.Storage("scan plan row", err)
		}
		level := levels[parent] + 1
		levels[id] = level
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", level), detail)
	}
	return rows.Err()
}
