package layer

import (
	"time"

	"github.com/starford/othala/internal/store"
)

// Direction tags which way an action is being executed. It matters for
// exactly one side effect: a forward EditNote stamps modified_at with the
// current time when the caller did not supply one, while a backward
// execution restores the recorded timestamp verbatim so that undoing an
// edit does not itself count as a modification.
type Direction int

const (
	Forward Direction = iota
	Backward
)

type effectKind int

const (
	effectQuery effectKind = iota
	effectNote
	effectSubjects
)

// Effect classifies what a completed action invalidated. The cache layer
// consumes it directly; the event stream republishes it to clients.
type Effect struct {
	kind effectKind
	note store.NoteID
}

// InvalidateQuery reports that query result sets may have changed.
func InvalidateQuery() Effect { return Effect{kind: effectQuery} }

// InvalidateNote reports that one note's content changed (query result sets
// may have changed with it).
func InvalidateNote(id store.NoteID) Effect { return Effect{kind: effectNote, note: id} }

// InvalidateSubjects reports that the subject tree changed.
func InvalidateSubjects() Effect { return Effect{kind: effectSubjects} }

// Kind returns a stable label for the effect, used by the event stream.
func (e Effect) Kind() string {
	switch e.kind {
	case effectNote:
		return "note"
	case effectSubjects:
		return "subjects"
	default:
		return "query"
	}
}

// Note returns the note id carried by an InvalidateNote effect.
func (e Effect) Note() (store.NoteID, bool) {
	return e.note, e.kind == effectNote
}

// Action is one reversible store mutation. The set is closed: every
// implementation lives in this file, and each apply returns the inverse
// action that undoes it, captured from store state before the mutation.
type Action interface {
	apply(s *store.Store, dir Direction) (inverse Action, effect Effect, err error)
}

// CreateNote inserts a note built from the carried builder.
type CreateNote struct {
	Builder store.NoteBuilder
}

func (a CreateNote) apply(s *store.Store, _ Direction) (Action, Effect, error) {
	// Pin the id up front so the inverse is known even though the note
	// does not exist yet.
	builder := a.Builder.DecideID()
	if _, err := s.AddNote(builder); err != nil {
		return nil, Effect{}, err
	}
	return DeleteNote{ID: builder.ID()}, InvalidateQuery(), nil
}

// DeleteNote removes a note by id.
type DeleteNote struct {
	ID store.NoteID
}

func (a DeleteNote) apply(s *store.Store, _ Direction) (Action, Effect, error) {
	snapshot, err := s.GetNote(a.ID)
	if err != nil {
		return nil, Effect{}, err
	}
	if err := s.DeleteNote(a.ID); err != nil {
		return nil, Effect{}, err
	}
	return CreateNote{Builder: store.BuilderFromNote(snapshot)}, InvalidateNote(a.ID), nil
}

// EditNote overwrites the fields the carried builder has set, leaving the
// rest of the note as stored.
type EditNote struct {
	ID      store.NoteID
	Builder store.NoteBuilder
}

func (a EditNote) apply(s *store.Store, dir Direction) (Action, Effect, error) {
	old, err := s.GetNote(a.ID)
	if err != nil {
		return nil, Effect{}, err
	}

	updated := a.Builder.ApplyTo(old)
	if dir == Forward && !a.Builder.HasModifiedAt() {
		updated.ModifiedAt = time.Now()
	}
	if _, err := s.UpdateNote(updated); err != nil {
		return nil, Effect{}, err
	}
	return EditNote{ID: a.ID, Builder: store.BuilderFromNote(old)}, InvalidateNote(a.ID), nil
}

// AddSubject creates a subject under Parent. A zero ID means assign a fresh
// one; the undo log sets it to re-create a removed subject under its
// original id.
type AddSubject struct {
	Name   string
	Parent store.SubjectID
	ID     store.SubjectID
}

func (a AddSubject) apply(s *store.Store, _ Direction) (Action, Effect, error) {
	id := a.ID
	if id.IsZero() {
		id = store.NewSubjectID()
	}
	if _, err := s.AddSubjectWithID(id, a.Name, a.Parent); err != nil {
		return nil, Effect{}, err
	}
	return RemoveSubject{ID: id}, InvalidateSubjects(), nil
}

// RemoveSubject deletes a subject. Notes tagged with it lose the tag; its
// children are re-parented to its parent. Undoing restores the subject
// itself but not the note associations it had.
type RemoveSubject struct {
	ID store.SubjectID
}

func (a RemoveSubject) apply(s *store.Store, _ Direction) (Action, Effect, error) {
	snapshot, err := s.GetSubject(a.ID)
	if err != nil {
		return nil, Effect{}, err
	}
	if err := s.DeleteSubject(a.ID); err != nil {
		return nil, Effect{}, err
	}
	return AddSubject{Name: snapshot.Name, Parent: snapshot.Parent, ID: snapshot.ID}, InvalidateSubjects(), nil
}

// SetSubjectParent moves a subject within the tree.
type SetSubjectParent struct {
	ID     store.SubjectID
	Parent store.SubjectID
}

func (a SetSubjectParent) apply(s *store.Store, _ Direction) (Action, Effect, error) {
	snapshot, err := s.GetSubject(a.ID)
	if err != nil {
		return nil, Effect{}, err
	}
	if err := s.SetSubjectParent(a.ID, a.Parent); err != nil {
		return nil, Effect{}, err
	}
	return SetSubjectParent{ID: a.ID, Parent: snapshot.Parent}, InvalidateSubjects(), nil
}
