package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/othala/internal/apperr"
)

// GetSubjects returns all subjects ordered by name.
func (s *Store) GetSubjects() ([]Subject, error) {
	return getSubjects(s.db)
}

// GetSubjects returns all subjects on the read-only connection.
func (r *ReadStore) GetSubjects() ([]Subject, error) {
	return getSubjects(r.db)
}

func getSubjects(q querier) ([]Subject, error) {
	rows, err := q.Query(`SELECT id, name, parent_id FROM subjects ORDER BY name, id`)
	if err != nil {
		return nil, apperr.Storage("get subjects", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// GetSubject fetches one subject by id.
func (s *Store) GetSubject(id SubjectID) (Subject, error) {
	row := s.db.QueryRow(`SELECT id, name, parent_id FROM subjects WHERE id = ?`, id.String())
	sub, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, fmt.Errorf("%w: subject %s", apperr.ErrNotFound, id)
	}
	return sub, err
}

// AddSubject creates a subject under the given parent (zero parent = root).
// A duplicate name within the same parent scope fails with ErrConflict.
func (s *Store) AddSubject(name string, parent SubjectID) (Subject, error) {
	return s.AddSubjectWithID(NewSubjectID(), name, parent)
}

// AddSubjectWithID creates a subject with a caller-chosen id. The undo log
// uses this to re-create a removed subject under its original id, and import
// uses it to preserve snapshot ids.
func (s *Store) AddSubjectWithID(id SubjectID, name string, parent SubjectID) (Subject, error) {
	_, err := s.db.Exec(`INSERT INTO subjects (id, name, parent_id) VALUES (?, ?, ?)`,
		id.String(), name, subjectDBValue(parent))
	if err != nil {
		if isConstraintErr(err) {
			return Subject{}, fmt.Errorf("%w: subject %q under this parent", apperr.ErrConflict, name)
		}
		return Subject{}, apperr.Storage("insert subject", err)
	}
	return Subject{ID: id, Name: name, Parent: parent}, nil
}

// SetSubjectParent moves a subject in the tree. The zero parent moves it to
// the root.
func (s *Store) SetSubjectParent(id SubjectID, parent SubjectID) error {
	res, err := s.db.Exec(`UPDATE subjects SET parent_id = ? WHERE id = ?`,
		subjectDBValue(parent), id.String())
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("%w: name collision under new parent", apperr.ErrConflict)
		}
		return apperr.Storage("set subject parent", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("set subject parent", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: subject %s", apperr.ErrNotFound, id)
	}
	return nil
}

// DeleteSubject removes a subject and every association row referencing it.
// Notes tagged with it are kept; they simply lose the tag. Children of the
// subject are re-parented to its parent so the tree stays connected.
func (s *Store) DeleteSubject(id SubjectID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Storage("begin delete subject", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var parent string
	err = tx.QueryRow(`SELECT parent_id FROM subjects WHERE id = ?`, id.String()).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: subject %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return apperr.Storage("load subject for delete", err)
	}

	if _, err := tx.Exec(`UPDATE subjects SET parent_id = ? WHERE parent_id = ?`, parent, id.String()); err != nil {
		return apperr.Storage("reparent children", err)
	}
	// The search-table trigger cleans up the denormalized rows.
	if _, err := tx.Exec(`DELETE FROM notes_subjects WHERE subject_id = ?`, id.String()); err != nil {
		return apperr.Storage("delete subject associations", err)
	}
	// Notes that just lost their only subject need the sentinel row back so
	// the global listing still sees them.
	if _, err := tx.Exec(`
		INSERT INTO notes_subjects (note_id, subject_id)
		SELECT n.id, '' FROM notes n
		WHERE NOT EXISTS (SELECT 1 FROM notes_subjects ns WHERE ns.note_id = n.id)`); err != nil {
		return apperr.Storage("restore sentinel rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM subjects WHERE id = ?`, id.String()); err != nil {
		return apperr.Storage("delete subject", err)
	}
	return tx.Commit()
}

// GetSubjectChildren returns the ids of the direct children of a subject,
// ordered by name.
func (s *Store) GetSubjectChildren(id SubjectID) ([]SubjectID, error) {
	rows, err := s.db.Query(`SELECT id FROM subjects WHERE parent_id = ? ORDER BY name, id`, id.String())
	if err != nil {
		return nil, apperr.Storage("subject children", err)
	}
	defer rows.Close()

	var children []SubjectID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperr.Storage("scan subject id", err)
		}
		child, err := ParseSubjectID(raw)
		if err != nil {
			return nil, apperr.Storage("parse subject id", err)
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

// SubjectNoteCount reports how many notes carry the subject. Calling code
// uses it to gate subject deletion; the store itself does not forbid deleting
// a subject that still has notes.
func (s *Store) SubjectNoteCount(id SubjectID) (uint64, error) {
	var count uint64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notes_search WHERE subject_id = ?`, id.String()).Scan(&count)
	if err != nil {
		return 0, apperr.Storage("subject note count", err)
	}
	return count, nil
}

// ImportSubject inserts a subject verbatim from a snapshot.
func (s *Store) ImportSubject(sub Subject) error {
	_, err := s.AddSubjectWithID(sub.ID, sub.Name, sub.Parent)
	return err
}

func scanSubject(row rowScanner) (Subject, error) {
	var (
		rawID, name, rawParent string
		sub                    Subject
	)
	if err := row.Scan(&rawID, &name, &rawParent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subject{}, err
		}
		return Subject{}, apperr.Storage("scan subject", err)
	}
	id, err := ParseSubjectID(rawID)
	if err != nil {
		return Subject{}, apperr.Storage("parse subject id", err)
	}
	sub.ID = id
	sub.Name = name
	if rawParent != "" {
		parent, err := ParseSubjectID(rawParent)
		if err != nil {
			return Subject{}, apperr.Storage("parse parent id", err)
		}
		sub.Parent = parent
	}
	return sub, nil
}
