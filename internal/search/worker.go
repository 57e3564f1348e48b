// Package search serves full-text and find-similar queries from a dedicated
// background goroutine, keeping them off the write path entirely.
package search

import (
	"log/slog"
	"sync/atomic"

	"github.com/starford/othala/internal/store"
	"github.com/starford/othala/internal/tokenizer"
)

const (
	// searchLimit caps full-text result sets.
	searchLimit = 200
	// similarLimit caps find-similar result sets.
	similarLimit = 20
	// similarTerms is how many top-ranked draft terms feed a similarity query.
	similarTerms = 5
)

type kind int

const (
	kindSearch kind = iota
	kindSimilar
)

func (k kind) String() string {
	if k == kindSimilar {
		return "similar"
	}
	return "search"
}

type request struct {
	kind  kind
	text  string
	reply chan []store.Note
}

// Worker executes queries against its own read-only store connection.
//
// Concurrency model: one internal goroutine owns the loop; public methods
// communicate with it through channels, so no mutexes are required. The loop
// applies latest-wins backpressure: when requests pile up faster than they
// are answered, only the newest survives — superseded requests get their
// reply channel closed without a result. Callers driving live search from
// keystrokes must treat a closed reply as "ask again", not as empty.
type Worker struct {
	notes *store.ReadStore
	log   *slog.Logger

	requests chan request

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewWorker starts the background loop over the given read-only store.
func NewWorker(notes *store.ReadStore, log *slog.Logger) *Worker {
	w := &Worker{
		notes:    notes,
		log:      log,
		requests: make(chan request, 64),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Search submits a full-text query. The reply channel yields at most one
// result slice and is then closed; it is closed without a value when the
// request was superseded by a newer one or the worker shut down.
func (w *Worker) Search(text string) <-chan []store.Note {
	return w.submit(request{kind: kindSearch, text: text, reply: make(chan []store.Note, 1)})
}

// FindSimilar submits a similarity query for a draft text.
func (w *Worker) FindSimilar(text string) <-chan []store.Note {
	return w.submit(request{kind: kindSimilar, text: text, reply: make(chan []store.Note, 1)})
}

func (w *Worker) submit(req request) <-chan []store.Note {
	if w.closed.Load() {
		close(req.reply)
		return req.reply
	}
	select {
	case w.requests <- req:
	case <-w.stopped:
		close(req.reply)
	}
	return req.reply
}

// Close stops the loop and resolves any queued requests as superseded.
func (w *Worker) Close() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.stopCh)
	}
	<-w.stopped
}

func (w *Worker) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stopCh:
			for {
				select {
				case req := <-w.requests:
					close(req.reply)
				default:
					return
				}
			}

		case req := <-w.requests:
			// Latest wins: everything queued behind this request
			// supersedes it, so drain to the newest before working.
		drain:
			for {
				select {
				case next := <-w.requests:
					close(req.reply)
					req = next
				default:
					break drain
				}
			}

			req.reply <- w.execute(req)
			close(req.reply)
		}
	}
}

// execute never lets an internal failure escape the loop: errors and panics
// resolve to an empty result.
func (w *Worker) execute(req request) (notes []store.Note) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("search request panicked", "kind", req.kind.String(), "panic", r)
			notes = nil
		}
	}()

	var (
		groups []string
		limit  int
	)
	switch req.kind {
	case kindSimilar:
		words, err := w.notes.BestWords(req.text)
		if err != nil {
			w.log.Error("rank draft terms", "error", err)
			return nil
		}
		if len(words) > similarTerms {
			words = words[:similarTerms]
		}
		groups, limit = tokenizer.SearchGroups(words), similarLimit
	default:
		groups, limit = tokenizer.SearchGroups([]string{req.text}), searchLimit
	}
	if len(groups) == 0 {
		return nil
	}

	rowids, err := w.notes.SearchRowIDs(groups, limit)
	if err != nil {
		// Malformed queries surface here; treat them as no matches.
		w.log.Error("execute search", "kind", req.kind.String(), "error", err)
		return nil
	}

	for _, rowid := range rowids {
		note, err := w.notes.NoteByRowID(rowid)
		if err != nil {
			// The note may have been deleted since the index was read.
			continue
		}
		notes = append(notes, note)
	}
	return notes
}
