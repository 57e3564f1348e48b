package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/layer"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(l *layer.Layer, worker *search.Worker, s *store.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(l, worker, s)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Search and term ranking.
	r.Get("/search", h.Search)
	r.Get("/similar", h.Similar)
	r.Get("/words", h.Words)

	// Subject tree.
	r.Get("/subjects", h.ListSubjects)
	r.Post("/subjects", h.CreateSubject)
	r.Get("/subjects/{id}", h.GetSubject)
	r.Put("/subjects/{id}/parent", h.SetSubjectParent)
	r.Delete("/subjects/{id}", h.DeleteSubject)

	// Undo history.
	r.Get("/history", h.History)
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)

	// Snapshot export.
	r.Get("/export", h.Export)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
