package store

import (
	"database/sql"
	"errors"
	"math"
	"sort"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/tokenizer"
)

// The term index keeps one global document-frequency counter per normalized
// term. It is only ever mutated inside the transaction that mutates the note
// causing the change, so the counters never drift from the notes table.

// BestWords ranks the terms of a draft text by TF-IDF against the corpus and
// returns them best first. Terms the index has never seen are discarded: with
// no document frequency there is no meaningful inverse to compute.
func (s *Store) BestWords(text string) ([]string, error) {
	return bestWords(s.db, text)
}

// BestWords is the read-only variant used by the search worker.
func (r *ReadStore) BestWords(text string) ([]string, error) {
	return bestWords(r.db, text)
}

func bestWords(q querier, text string) ([]string, error) {
	var totalNotes int64
	if err := q.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&totalNotes); err != nil {
		return nil, apperr.Storage("count notes", err)
	}
	if totalNotes == 0 {
		return nil, nil
	}

	counts := tokenizer.Terms(text)
	distinct := float64(len(counts))
	if distinct == 0 {
		return nil, nil
	}

	type scored struct {
		term  string
		score float64
	}
	var results []scored
	for term, occurrences := range counts {
		var docCount int64
		err := q.QueryRow(`SELECT count FROM term_occurrences WHERE term = ?`, term).Scan(&docCount)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Storage("term lookup", err)
		}
		if docCount <= 0 {
			continue
		}
		tf := float64(occurrences) / distinct
		idf := math.Log(float64(totalNotes) / float64(docCount))
		results = append(results, scored{term: term, score: tf * idf})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].term < results[j].term
	})

	words := make([]string, len(results))
	for i, r := range results {
		words[i] = r.term
	}
	return words, nil
}

// insertWordOccurrences bumps the document-frequency counter of every
// distinct term in text by one.
func insertWordOccurrences(tx *sql.Tx, text string) error {
	stmt, err := tx.Prepare(`
		INSERT INTO term_occurrences (term, count) VALUES (?, 1)
		ON CONFLICT(term) DO UPDATE SET count = count + 1`)
	if err != nil {
		return apperr.Storage("prepare term insert", err)
	}
	defer stmt.Close()

	for term := range tokenizer.Terms(text) {
		if _, err := stmt.Exec(term); err != nil {
			return apperr.Storage("insert term occurrence", err)
		}
	}
	return nil
}

// removeWordOccurrences undoes a prior insertWordOccurrences for the same
// text. Counters that reach zero are dropped from the table entirely.
func removeWordOccurrences(tx *sql.Tx, text string) error {
	stmt, err := tx.Prepare(`UPDATE term_occurrences SET count = count - 1 WHERE term = ?`)
	if err != nil {
		return apperr.Storage("prepare term remove", err)
	}
	defer stmt.Close()

	for term := range tokenizer.Terms(text) {
		if _, err := stmt.Exec(term); err != nil {
			return apperr.Storage("remove term occurrence", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM term_occurrences WHERE count <= 0`); err != nil {
		return apperr.Storage("prune term occurrences", err)
	}
	return nil
}

// fillWordOccurrenceTable rebuilds the term index from scratch by replaying
// every stored note's text. Used during schema bootstrap and reindex.
func fillWordOccurrenceTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM term_occurrences`); err != nil {
		return apperr.Storage("clear term occurrences", err)
	}

	rows, err := tx.Query(`SELECT text FROM notes`)
	if err != nil {
		return apperr.Storage("read note texts", err)
	}
	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			rows.Close()
			return apperr.Storage("scan note text", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperr.Storage("read note texts", err)
	}
	rows.Close()

	for _, text := range texts {
		if err := insertWordOccurrences(tx, text); err != nil {
			return err
		}
	}
	return nil
}
