// Package testutil provides shared test helpers for setting up note stores.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/othala/internal/store"
)

// TestStore creates a temporary store that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	s, _ := TestStoreAt(t, tempDBPath(t))
	return s
}

// TestStores creates a temporary store plus a read-only companion connection
// on the same database, the way the search worker runs in production.
func TestStores(t *testing.T) (*store.Store, *store.ReadStore) {
	t.Helper()
	path := tempDBPath(t)
	s, _ := TestStoreAt(t, path)

	r, err := store.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return s, r
}

// TestStoreAt opens a store on the given path with cleanup registered.
func TestStoreAt(t *testing.T, path string) (*store.Store, string) {
	t.Helper()
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

// Logger returns a quiet logger for components that demand one.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}
