package store

import (
	"time"

	"github.com/google/uuid"
)

// NoteID identifies a note for its whole lifetime.
type NoteID uuid.UUID

// NewNoteID returns a fresh random NoteID.
func NewNoteID() NoteID { return NoteID(uuid.New()) }

// ParseNoteID parses the canonical string form of a NoteID.
func ParseNoteID(s string) (NoteID, error) {
	u, err := uuid.Parse(s)
	return NoteID(u), err
}

func (id NoteID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether id is the zero id.
func (id NoteID) IsZero() bool { return id == NoteID(uuid.Nil) }

// MarshalText implements encoding.TextMarshaler so ids serialize as UUID
// strings in JSON.
func (id NoteID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NoteID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// SubjectID identifies a subject. The zero value doubles as "no subject" in
// queries and as the sentinel association written for subject-less notes.
type SubjectID uuid.UUID

// NewSubjectID returns a fresh random SubjectID.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// ParseSubjectID parses the canonical string form of a SubjectID.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := uuid.Parse(s)
	return SubjectID(u), err
}

func (id SubjectID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether id is the zero id.
func (id SubjectID) IsZero() bool { return id == SubjectID(uuid.Nil) }

// MarshalText implements encoding.TextMarshaler.
func (id SubjectID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SubjectID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// TaskState says whether a note participates in task-only queries.
type TaskState int

const (
	NotATask TaskState = 0
	Todo     TaskState = 1
	Done     TaskState = 2
)

func (t TaskState) String() string {
	switch t {
	case NotATask:
		return "not_a_task"
	case Todo:
		return "todo"
	case Done:
		return "done"
	}
	return "unknown"
}

// Note is the full record of a note. RowID is the engine row identifier the
// document index is keyed by; it changes on every edit and is excluded from
// serialization and equality concerns.
type Note struct {
	ID         NoteID      `json:"id"`
	RowID      int64       `json:"-"`
	Text       string      `json:"text"`
	Subjects   []SubjectID `json:"subjects"`
	TaskState  TaskState   `json:"task_state"`
	CreatedAt  time.Time   `json:"created_at"`
	ModifiedAt time.Time   `json:"modified_at"`
	DoneAt     *time.Time  `json:"done_at,omitempty"`
}

// Subject is a user-defined tag. Subjects form a tree via Parent; the zero
// Parent means root. Cycles are excluded by construction (a parent must
// already exist and re-parenting below own descendants is the caller's
// responsibility to avoid).
type Subject struct {
	ID     SubjectID `json:"id"`
	Name   string    `json:"name"`
	Parent SubjectID `json:"parent_id"`
}

// NoteSearch describes a note query. It is a pure value: comparable, usable
// directly as a cache key.
type NoteSearch struct {
	Subject  SubjectID
	TaskOnly bool
}

// WithSubject returns the search narrowed to one subject.
func (s NoteSearch) WithSubject(id SubjectID) NoteSearch {
	s.Subject = id
	return s
}

// WithTaskOnly returns the search restricted to task notes.
func (s NoteSearch) WithTaskOnly(on bool) NoteSearch {
	s.TaskOnly = on
	return s
}
