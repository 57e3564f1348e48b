// Package layer coordinates mutations through an undo/redo command log and
// fronts reads with bounded LRU caches. It is the single write entry point
// above the store: callers perform Actions, never raw store mutations, so
// every change is reversible and every cache stays coherent.
package layer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/othala/internal/store"
)

// undoQueueSize bounds the history. The oldest entry is dropped on overflow.
const undoQueueSize = 64

var (
	ErrNothingToUndo = errors.New("layer: nothing to undo")
	ErrNothingToRedo = errors.New("layer: nothing to redo")
)

// Layer owns the undo and redo queues and the read caches. A single mutex
// serializes all access: the store's write connection admits one writer, and
// history bookkeeping has to observe mutations in one total order anyway.
type Layer struct {
	mu     sync.Mutex
	store  *store.Store
	caches *caches
	log    *slog.Logger

	undo []Action
	redo []Action

	// notify, when set, observes every applied effect after the caches
	// have consumed it.
	notify func(Effect)
}

// New wraps a store. The notify sink may be nil.
func New(s *store.Store, log *slog.Logger, notify func(Effect)) (*Layer, error) {
	c, err := newCaches()
	if err != nil {
		return nil, err
	}
	return &Layer{store: s, caches: c, log: log, notify: notify}, nil
}

// Perform executes an action forward, records its inverse on the undo queue,
// and clears the redo queue. A failed action leaves history and caches
// untouched.
func (l *Layer) Perform(a Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inverse, effect, err := a.apply(l.store, Forward)
	if err != nil {
		return err
	}

	l.redo = l.redo[:0]
	l.undo = append(l.undo, inverse)
	if len(l.undo) > undoQueueSize {
		l.undo = l.undo[1:]
	}

	l.applyEffect(effect)
	return nil
}

// Undo reverses the most recent action and moves it onto the redo queue.
func (l *Layer) Undo() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.undo) == 0 {
		return ErrNothingToUndo
	}
	a := l.undo[len(l.undo)-1]

	inverse, effect, err := a.apply(l.store, Backward)
	if err != nil {
		return err
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, inverse)

	l.applyEffect(effect)
	return nil
}

// Redo re-applies the most recently undone action.
func (l *Layer) Redo() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.redo) == 0 {
		return ErrNothingToRedo
	}
	a := l.redo[len(l.redo)-1]

	inverse, effect, err := a.apply(l.store, Forward)
	if err != nil {
		return err
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, inverse)
	if len(l.undo) > undoQueueSize {
		l.undo = l.undo[1:]
	}

	l.applyEffect(effect)
	return nil
}

func (l *Layer) applyEffect(e Effect) {
	l.caches.invalidate(e)
	if l.notify != nil {
		l.notify(e)
	}
	l.log.Debug("action applied", "effect", e.Kind())
}

// Note reads one note, through the note cache.
func (l *Layer) Note(id store.NoteID) (store.Note, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caches.note(id, func() (store.Note, error) {
		return l.store.GetNote(id)
	})
}

// Notes reads a batch of notes, each through the note cache. Any missing id
// fails the whole read.
func (l *Layer) Notes(ids []store.NoteID) ([]store.Note, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	notes := make([]store.Note, 0, len(ids))
	for _, id := range ids {
		n, err := l.caches.note(id, func() (store.Note, error) {
			return l.store.GetNote(id)
		})
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// FindNotes runs a query through the query cache.
func (l *Layer) FindNotes(search store.NoteSearch) ([]store.NoteID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caches.query(search, func() ([]store.NoteID, error) {
		return l.store.FindNotes(search)
	})
}

// Subjects lists all subjects. The tree is small; no cache fronts it.
func (l *Layer) Subjects() ([]store.Subject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetSubjects()
}

// Subject reads one subject.
func (l *Layer) Subject(id store.SubjectID) (store.Subject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetSubject(id)
}

// SubjectChildren lists the direct children of a subject.
func (l *Layer) SubjectChildren(id store.SubjectID) ([]store.SubjectID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetSubjectChildren(id)
}

// SubjectNoteCount reports how many notes reference a subject. Callers use
// it to warn before a destructive RemoveSubject.
func (l *Layer) SubjectNoteCount(id store.SubjectID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.SubjectNoteCount(id)
}

// BestWords ranks a draft's terms against the corpus.
func (l *Layer) BestWords(text string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.BestWords(text)
}

// CanUndo and CanRedo report history availability without touching it.
func (l *Layer) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

func (l *Layer) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}
