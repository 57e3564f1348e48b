package layer

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/othala/internal/store"
)

const (
	noteCacheSize  = 1024
	queryCacheSize = 16
)

// caches front the store's read paths. Strict LRU: a hit refreshes recency,
// inserting at capacity evicts the least recently used entry.
type caches struct {
	notes   *lru.Cache[store.NoteID, store.Note]
	queries *lru.Cache[store.NoteSearch, []store.NoteID]
}

func newCaches() (*caches, error) {
	notes, err := lru.New[store.NoteID, store.Note](noteCacheSize)
	if err != nil {
		return nil, fmt.Errorf("layer: note cache: %w", err)
	}
	queries, err := lru.New[store.NoteSearch, []store.NoteID](queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("layer: query cache: %w", err)
	}
	return &caches{notes: notes, queries: queries}, nil
}

func (c *caches) note(id store.NoteID, compute func() (store.Note, error)) (store.Note, error) {
	if n, ok := c.notes.Get(id); ok {
		return n, nil
	}
	n, err := compute()
	if err != nil {
		return store.Note{}, err
	}
	c.notes.Add(id, n)
	return n, nil
}

func (c *caches) query(search store.NoteSearch, compute func() ([]store.NoteID, error)) ([]store.NoteID, error) {
	if ids, ok := c.queries.Get(search); ok {
		return ids, nil
	}
	ids, err := compute()
	if err != nil {
		return nil, err
	}
	c.queries.Add(search, ids)
	return ids, nil
}

// invalidate applies one write effect. Any note mutation can change arbitrary
// query memberships, so note-scoped effects still purge the query cache
// wholesale; attributing a write to individual cached queries would mean
// re-deriving every predicate.
func (c *caches) invalidate(e Effect) {
	switch e.kind {
	case effectNote:
		c.notes.Remove(e.note)
		c.queries.Purge()
	case effectSubjects:
		// Subject mutations can rewrite the subject lists of cached
		// notes, so drop everything.
		c.notes.Purge()
		c.queries.Purge()
	default:
		c.queries.Purge()
	}
}
