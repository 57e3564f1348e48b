package api

import (
	"github.com/starford/othala/internal/store"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Text      string            `json:"text" validate:"required"`
	Subjects  []store.SubjectID `json:"subjects"`
	TaskState *int              `json:"task_state"`
}

// UpdateNoteRequest is the request body for editing a note. Absent fields
// keep their stored value.
type UpdateNoteRequest struct {
	Text      *string            `json:"text"`
	Subjects  *[]store.SubjectID `json:"subjects"`
	TaskState *int               `json:"task_state"`
}

// CreateSubjectRequest is the request body for creating a subject. A zero
// parent creates a root subject.
type CreateSubjectRequest struct {
	Name   string          `json:"name" validate:"required"`
	Parent store.SubjectID `json:"parent_id"`
}

// SetSubjectParentRequest moves a subject within the tree.
type SetSubjectParentRequest struct {
	Parent store.SubjectID `json:"parent_id"`
}

// NoteListResponse wraps a query result.
type NoteListResponse struct {
	Notes []store.Note `json:"notes"`
}

// SearchResponse wraps an asynchronous search result. Superseded reports
// that a newer concurrent query displaced this one before it ran; the
// client should simply ask again.
type SearchResponse struct {
	Notes      []store.Note `json:"notes"`
	Superseded bool         `json:"superseded,omitempty"`
}

// SubjectDetail is a subject plus its derived relations.
type SubjectDetail struct {
	store.Subject
	Children  []store.SubjectID `json:"children"`
	NoteCount uint64            `json:"note_count"`
}

// WordsResponse wraps ranked draft terms.
type WordsResponse struct {
	Words []string `json:"words"`
}

// HistoryResponse reports undo/redo availability.
type HistoryResponse struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}
