package store

import "time"

// NoteBuilder collects the fields of a note to create or the fields of an
// edit to apply. Unset fields keep their defaults on create and stay
// untouched on edit. Builders are values: every With method returns a copy,
// so a builder captured in an undo action cannot be mutated afterwards.
type NoteBuilder struct {
	id         NoteID
	text       *string
	subjects   []SubjectID
	taskState  *TaskState
	createdAt  *time.Time
	modifiedAt *time.Time
	doneAt     *time.Time
	hasDoneAt  bool
}

// NewNoteBuilder returns an empty builder.
func NewNoteBuilder() NoteBuilder { return NoteBuilder{} }

// Text sets the note text.
func (b NoteBuilder) Text(text string) NoteBuilder {
	b.text = &text
	return b
}

// Subjects sets the full subject set. Passing an empty (non-nil) slice
// explicitly clears the subjects on edit.
func (b NoteBuilder) Subjects(subjects []SubjectID) NoteBuilder {
	if subjects == nil {
		subjects = []SubjectID{}
	}
	b.subjects = subjects
	return b
}

// Subject adds one subject to the set.
func (b NoteBuilder) Subject(id SubjectID) NoteBuilder {
	set := make([]SubjectID, len(b.subjects), len(b.subjects)+1)
	copy(set, b.subjects)
	b.subjects = append(set, id)
	return b
}

// TaskState sets the task state.
func (b NoteBuilder) TaskState(state TaskState) NoteBuilder {
	b.taskState = &state
	return b
}

// CreatedAt overrides the creation timestamp.
func (b NoteBuilder) CreatedAt(t time.Time) NoteBuilder {
	b.createdAt = &t
	return b
}

// ModifiedAt overrides the modification timestamp. An edit performed through
// the undo log in the backward direction uses this to restore the prior
// timestamp verbatim.
func (b NoteBuilder) ModifiedAt(t time.Time) NoteBuilder {
	b.modifiedAt = &t
	return b
}

// DoneAt sets the completion timestamp; nil clears it.
func (b NoteBuilder) DoneAt(t *time.Time) NoteBuilder {
	b.doneAt = t
	b.hasDoneAt = true
	return b
}

// WithID pins the note id.
func (b NoteBuilder) WithID(id NoteID) NoteBuilder {
	b.id = id
	return b
}

// DecideID pins a fresh id if none is set yet. Deciding the id before the
// store sees the builder lets callers (and inverse actions) refer to the
// note-to-be.
func (b NoteBuilder) DecideID() NoteBuilder {
	if b.id.IsZero() {
		b.id = NewNoteID()
	}
	return b
}

// ID returns the pinned id, zero if undecided.
func (b NoteBuilder) ID() NoteID { return b.id }

// HasModifiedAt reports whether the builder carries an explicit modification
// timestamp.
func (b NoteBuilder) HasModifiedAt() bool { return b.modifiedAt != nil }

// Build materializes a new note, applying defaults for unset fields:
// created_at = modified_at = now, empty text, no subjects, not a task.
func (b NoteBuilder) Build(now time.Time) Note {
	n := Note{
		ID:         b.id,
		Subjects:   []SubjectID{},
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if n.ID.IsZero() {
		n.ID = NewNoteID()
	}
	return b.ApplyTo(n)
}

// ApplyTo merges the set fields onto an existing note and returns the result.
func (b NoteBuilder) ApplyTo(n Note) Note {
	if !b.id.IsZero() {
		n.ID = b.id
	}
	if b.text != nil {
		n.Text = *b.text
	}
	if b.subjects != nil {
		n.Subjects = append([]SubjectID{}, b.subjects...)
	}
	if b.taskState != nil {
		n.TaskState = *b.taskState
	}
	if b.createdAt != nil {
		n.CreatedAt = *b.createdAt
	}
	if b.modifiedAt != nil {
		n.ModifiedAt = *b.modifiedAt
	}
	if b.hasDoneAt {
		n.DoneAt = b.doneAt
	}
	return n
}

// BuilderFromNote captures a full snapshot of n as a builder. Applying it to
// any note reproduces n exactly; the undo log uses this to construct inverse
// edits before the forward mutation runs.
func BuilderFromNote(n Note) NoteBuilder {
	b := NewNoteBuilder().
		WithID(n.ID).
		Text(n.Text).
		Subjects(n.Subjects).
		TaskState(n.TaskState).
		CreatedAt(n.CreatedAt).
		ModifiedAt(n.ModifiedAt)
	if n.DoneAt != nil {
		done := *n.DoneAt
		return b.DoneAt(&done)
	}
	return b.DoneAt(nil)
}
