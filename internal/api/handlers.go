package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/export"
	"github.com/starford/othala/internal/layer"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/store"
)

// Handler holds API route handlers. All writes go through the layer so they
// land in the undo history; search goes to the background worker.
type Handler struct {
	layer  *layer.Layer
	worker *search.Worker
	store  *store.Store
}

// NewHandler creates a new Handler. The store is only used for snapshot
// export, which reads tables the layer does not surface.
func NewHandler(l *layer.Layer, w *search.Worker, s *store.Store) *Handler {
	return &Handler{layer: l, worker: w, store: s}
}

func noteID(r *http.Request) (store.NoteID, error) {
	return store.ParseNoteID(chi.URLParam(r, "id"))
}

func subjectID(r *http.Request) (store.SubjectID, error) {
	return store.ParseSubjectID(chi.URLParam(r, "id"))
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes with optional ?subject= and ?tasks=true
// filters.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var query store.NoteSearch
	if raw := q.Get("subject"); raw != "" {
		id, err := store.ParseSubjectID(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid subject id"))
			return
		}
		query = query.WithSubject(id)
	}
	if q.Get("tasks") == "true" {
		query = query.WithTaskOnly(true)
	}

	ids, err := h.layer.FindNotes(query)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	notes, err := h.layer.Notes(ids)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if notes == nil {
		notes = []store.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.layer.Note(id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	builder := store.NewNoteBuilder().Text(req.Text).Subjects(req.Subjects).DecideID()
	if req.TaskState != nil {
		builder = builder.TaskState(store.TaskState(*req.TaskState))
	}
	if err := h.layer.Perform(layer.CreateNote{Builder: builder}); err != nil {
		writeError(w, "create note", err)
		return
	}

	note, err := h.layer.Note(builder.ID())
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}. Absent body fields keep their
// stored value.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	builder := store.NewNoteBuilder()
	if req.Text != nil {
		builder = builder.Text(*req.Text)
	}
	if req.Subjects != nil {
		builder = builder.Subjects(*req.Subjects)
	}
	if req.TaskState != nil {
		builder = builder.TaskState(store.TaskState(*req.TaskState))
	}
	if err := h.layer.Perform(layer.EditNote{ID: id, Builder: builder}); err != nil {
		writeError(w, "update note", err)
		return
	}

	note, err := h.layer.Note(id)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	if err := h.layer.Perform(layer.DeleteNote{ID: id}); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?q=. The worker may supersede this query
// with a newer one; the response says so and the client retries.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	notes, ok := <-h.worker.Search(q)
	h.writeSearch(w, notes, ok)
}

// Similar handles GET /api/similar?text=, ranking stored notes against a
// draft text.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'text' is required"))
		return
	}
	notes, ok := <-h.worker.FindSimilar(text)
	h.writeSearch(w, notes, ok)
}

func (h *Handler) writeSearch(w http.ResponseWriter, notes []store.Note, answered bool) {
	if notes == nil {
		notes = []store.Note{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Notes: notes, Superseded: !answered})
}

// Words handles GET /api/words?text=, exposing the TF-IDF term ranking.
func (h *Handler) Words(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'text' is required"))
		return
	}
	words, err := h.layer.BestWords(text)
	if err != nil {
		writeError(w, "rank words", err)
		return
	}
	if words == nil {
		words = []string{}
	}
	writeJSON(w, http.StatusOK, WordsResponse{Words: words})
}

// ListSubjects handles GET /api/subjects.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.layer.Subjects()
	if err != nil {
		writeError(w, "list subjects", err)
		return
	}
	if subjects == nil {
		subjects = []store.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

// GetSubject handles GET /api/subjects/{id}, including derived relations.
func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, err := subjectID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid subject id"))
		return
	}
	subject, err := h.layer.Subject(id)
	if err != nil {
		writeError(w, "get subject", err)
		return
	}
	children, err := h.layer.SubjectChildren(id)
	if err != nil {
		writeError(w, "get subject", err)
		return
	}
	if children == nil {
		children = []store.SubjectID{}
	}
	count, err := h.layer.SubjectNoteCount(id)
	if err != nil {
		writeError(w, "get subject", err)
		return
	}
	writeJSON(w, http.StatusOK, SubjectDetail{Subject: subject, Children: children, NoteCount: count})
}

// CreateSubject handles POST /api/subjects.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}

	// Pin the id so the created subject can be read back after Perform.
	id := store.NewSubjectID()
	if err := h.layer.Perform(layer.AddSubject{Name: req.Name, Parent: req.Parent, ID: id}); err != nil {
		writeError(w, "create subject", err)
		return
	}
	subject, err := h.layer.Subject(id)
	if err != nil {
		writeError(w, "create subject", err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

// SetSubjectParent handles PUT /api/subjects/{id}/parent.
func (h *Handler) SetSubjectParent(w http.ResponseWriter, r *http.Request) {
	id, err := subjectID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid subject id"))
		return
	}
	var req SetSubjectParentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.layer.Perform(layer.SetSubjectParent{ID: id, Parent: req.Parent}); err != nil {
		writeError(w, "set subject parent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSubject handles DELETE /api/subjects/{id}. Tagged notes survive and
// lose the tag; children move up to the deleted subject's parent.
func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, err := subjectID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid subject id"))
		return
	}
	if err := h.layer.Perform(layer.RemoveSubject{ID: id}); err != nil {
		writeError(w, "delete subject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{CanUndo: h.layer.CanUndo(), CanRedo: h.layer.CanRedo()})
}

// Undo handles POST /api/undo. An empty history is a conflict, not a crash.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	if err := h.layer.Undo(); err != nil {
		if errors.Is(err, layer.ErrNothingToUndo) {
			writeJSON(w, http.StatusConflict, errorBody("nothing to undo"))
			return
		}
		writeError(w, "undo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redo handles POST /api/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	if err := h.layer.Redo(); err != nil {
		if errors.Is(err, layer.ErrNothingToRedo) {
			writeJSON(w, http.StatusConflict, errorBody("nothing to redo"))
			return
		}
		writeError(w, "redo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/export, streaming a full JSON snapshot.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="othala-snapshot.json"`)
	if err := export.Write(w, h.store); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
	}
}
