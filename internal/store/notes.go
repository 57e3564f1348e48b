package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/othala/internal/apperr"
)

// noteColumns selects a full note record plus the aggregated subject set.
// The sentinel association row (empty subject id) is filtered out here; it
// only exists to keep subject-less notes visible in the denormalized table.
const noteColumns = `
	n.id, n.rowid, n.text, n.task_state, n.created_at, n.modified_at, n.done_at,
	(SELECT group_concat(ns.subject_id)
	 FROM notes_subjects ns
	 WHERE ns.note_id = n.id AND ns.subject_id <> '')`

// AddNote creates a note from the builder, assigning an id if undecided and
// defaulting created_at = modified_at = now. The note row, its association
// rows (or the sentinel row for an empty subject set), the term-index deltas,
// and the document-index entry are all written in one transaction.
func (s *Store) AddNote(b NoteBuilder) (Note, error) {
	note := normalizeNote(b.Build(time.Now()))

	tx, err := s.db.Begin()
	if err != nil {
		return Note{}, apperr.Storage("begin add note", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rowid, err := insertNote(tx, note)
	if err != nil {
		return Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return Note{}, apperr.Storage("commit add note", err)
	}
	note.RowID = rowid
	return note, nil
}

// UpdateNote replaces the stored note with the given record, implemented as
// delete-then-reinsert of the same id inside one transaction. Term counts and
// the document index are refreshed along the way. Returns the note with its
// fresh row identifier.
func (s *Store) UpdateNote(n Note) (Note, error) {
	n = normalizeNote(n)

	tx, err := s.db.Begin()
	if err != nil {
		return Note{}, apperr.Storage("begin update note", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteNoteTx(tx, n.ID); err != nil {
		return Note{}, err
	}
	rowid, err := insertNote(tx, n)
	if err != nil {
		return Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return Note{}, apperr.Storage("commit update note", err)
	}
	n.RowID = rowid
	return n, nil
}

// DeleteNote removes the note row, its associations (the trigger purges the
// denormalized rows), its term counts, and its document-index entry.
func (s *Store) DeleteNote(id NoteID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Storage("begin delete note", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteNoteTx(tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit delete note", err)
	}
	return nil
}

// FindNotes returns note ids matching the search, newest first (task queries
// order Todo before Done first), capped at one page. The result never
// contains duplicate ids.
func (s *Store) FindNotes(search NoteSearch) ([]NoteID, error) {
	query, withSubject := QueryForSearch(search)

	var (
		rows *sql.Rows
		err  error
	)
	if withSubject {
		rows, err = s.db.Query(query, search.Subject.String())
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, apperr.Storage("find notes", err)
	}
	defer rows.Close()

	var ids []NoteID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperr.Storage("scan note id", err)
		}
		id, err := ParseNoteID(raw)
		if err != nil {
			return nil, apperr.Storage("parse note id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("find notes rows", err)
	}

	seen := make(map[NoteID]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		apperr.Invariant(!dup, "duplicate note id %s in find result", id)
		seen[id] = struct{}{}
	}
	return ids, nil
}

// QueryForSearch returns the SQL for a search variant and whether it binds a
// subject parameter. Exported for the query-plan explain tooling.
func QueryForSearch(search NoteSearch) (string, bool) {
	switch {
	case search.TaskOnly && !search.Subject.IsZero():
		return `
			SELECT note_id FROM notes_search
			WHERE subject_id = ?1 AND task_state > 0
			ORDER BY task_state ASC, created_at DESC, note_id
			LIMIT 200`, true
	case search.TaskOnly:
		return `
			SELECT note_id FROM notes_search
			WHERE task_state > 0
			GROUP BY note_id
			ORDER BY MIN(task_state) ASC, MAX(created_at) DESC, note_id
			LIMIT 200`, false
	case !search.Subject.IsZero():
		return `
			SELECT note_id FROM notes_search
			WHERE subject_id = ?1
			ORDER BY created_at DESC, note_id
			LIMIT 200`, true
	default:
		return `
			SELECT note_id FROM notes_search
			GROUP BY note_id
			ORDER BY MAX(created_at) DESC, note_id
			LIMIT 200`, false
	}
}

// GetNote fetches a full note record by id.
func (s *Store) GetNote(id NoteID) (Note, error) {
	return getNote(s.db, id)
}

// GetNotes fetches the given notes in order. Any missing id fails the whole
// lookup with ErrNotFound.
func (s *Store) GetNotes(ids []NoteID) ([]Note, error) {
	notes := make([]Note, 0, len(ids))
	for _, id := range ids {
		n, err := getNote(s.db, id)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// AllNotes returns every note, oldest first. Used by export and reindex.
func (s *Store) AllNotes() ([]Note, error) {
	rows, err := s.db.Query(`SELECT ` + noteColumns + ` FROM notes n ORDER BY n.created_at, n.id`)
	if err != nil {
		return nil, apperr.Storage("all notes", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ImportNote inserts a note verbatim, preserving ids and timestamps from the
// snapshot. Imports do not pass through the undo log.
func (s *Store) ImportNote(n Note) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Storage("begin import note", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := insertNote(tx, n); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit import note", err)
	}
	return nil
}

// NoteByRowID resolves a document-index hit back to a full note record on the
// worker's read-only connection.
func (r *ReadStore) NoteByRowID(rowid int64) (Note, error) {
	row := r.db.QueryRow(`SELECT `+noteColumns+` FROM notes n WHERE n.rowid = ?`, rowid)
	return scanNoteRow(row)
}

// normalizeNote enforces the invariants the store owns centrally:
// done_at is set exactly when the task state is Done, and modified_at never
// precedes created_at.
func normalizeNote(n Note) Note {
	if n.TaskState == Done {
		if n.DoneAt == nil {
			done := n.ModifiedAt
			n.DoneAt = &done
		}
	} else {
		n.DoneAt = nil
	}
	if n.ModifiedAt.Before(n.CreatedAt) {
		n.ModifiedAt = n.CreatedAt
	}
	return n
}

func insertNote(tx *sql.Tx, n Note) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO notes (id, text, task_state, created_at, modified_at, done_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.Text, int(n.TaskState),
		n.CreatedAt.UnixNano(), n.ModifiedAt.UnixNano(), nullableNano(n.DoneAt))
	if err != nil {
		if isConstraintErr(err) {
			return 0, fmt.Errorf("%w: note %s already exists", apperr.ErrConflict, n.ID)
		}
		return 0, apperr.Storage("insert note", err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("note rowid", err)
	}

	// The association rows feed the trigger-maintained search table. A note
	// without subjects still gets one sentinel row so unfiltered listings
	// see it.
	subjects := n.Subjects
	if len(subjects) == 0 {
		subjects = []SubjectID{{}}
	}
	stmt, err := tx.Prepare(`INSERT INTO notes_subjects (note_id, subject_id) VALUES (?, ?)`)
	if err != nil {
		return 0, apperr.Storage("prepare association insert", err)
	}
	defer stmt.Close()
	for _, subject := range subjects {
		if _, err := stmt.Exec(n.ID.String(), subjectDBValue(subject)); err != nil {
			return 0, apperr.Storage("insert association", err)
		}
	}

	if err := insertWordOccurrences(tx, n.Text); err != nil {
		return 0, err
	}
	if err := docIndexInsert(tx, rowid, n.Text); err != nil {
		return 0, err
	}
	return rowid, nil
}

func deleteNoteTx(tx *sql.Tx, id NoteID) error {
	var (
		rowid int64
		text  string
	)
	err := tx.QueryRow(`SELECT rowid, text FROM notes WHERE id = ?`, id.String()).Scan(&rowid, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: note %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return apperr.Storage("load note for delete", err)
	}

	if err := removeWordOccurrences(tx, text); err != nil {
		return err
	}
	if err := docIndexDelete(tx, rowid); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes_subjects WHERE note_id = ?`, id.String()); err != nil {
		return apperr.Storage("delete associations", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id.String()); err != nil {
		return apperr.Storage("delete note", err)
	}
	return nil
}

func getNote(q querier, id NoteID) (Note, error) {
	row := q.QueryRow(`SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id.String())
	return scanNoteRow(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNoteRow(row *sql.Row) (Note, error) {
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, apperr.ErrNotFound
	}
	return n, err
}

func scanNote(row rowScanner) (Note, error) {
	var (
		rawID        string
		taskState    int
		createdNano  int64
		modifiedNano int64
		doneNano     sql.NullInt64
		subjectsCSV  sql.NullString
		n            Note
	)
	err := row.Scan(&rawID, &n.RowID, &n.Text, &taskState, &createdNano, &modifiedNano, &doneNano, &subjectsCSV)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, err
		}
		return Note{}, apperr.Storage("scan note", err)
	}

	n.ID, err = ParseNoteID(rawID)
	if err != nil {
		return Note{}, apperr.Storage("parse note id", err)
	}
	n.TaskState = TaskState(taskState)
	n.CreatedAt = time.Unix(0, createdNano)
	n.ModifiedAt = time.Unix(0, modifiedNano)
	if doneNano.Valid {
		done := time.Unix(0, doneNano.Int64)
		n.DoneAt = &done
	}

	n.Subjects = []SubjectID{}
	if subjectsCSV.Valid && subjectsCSV.String != "" {
		for _, raw := range strings.Split(subjectsCSV.String, ",") {
			id, err := ParseSubjectID(raw)
			if err != nil {
				return Note{}, apperr.Storage("parse subject id", err)
			}
			n.Subjects = append(n.Subjects, id)
		}
		// group_concat order is unspecified; keep serialization deterministic.
		sort.Slice(n.Subjects, func(i, j int) bool {
			return n.Subjects[i].String() < n.Subjects[j].String()
		})
	}
	return n, nil
}

// subjectDBValue maps the zero SubjectID to the empty-string sentinel used in
// the association and search tables.
func subjectDBValue(id SubjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}

func nullableNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}
