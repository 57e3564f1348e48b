package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/othala/internal/export"
	"github.com/starford/othala/internal/store"
)

func writeTestConfig(t *testing.T, dir, dbPath string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("sqlite:\n  path: %s\n", dbPath)
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func writeTestSnapshot(t *testing.T, dir string) string {
	t.Helper()
	src, err := store.Open(filepath.Join(dir, "source.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if _, err := src.AddNote(store.NewNoteBuilder().Text("snapshot payload")); err != nil {
		t.Fatal(err)
	}

	snap := filepath.Join(dir, "snapshot.json")
	f, err := os.Create(snap)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := export.Write(f, src); err != nil {
		t.Fatal(err)
	}
	return snap
}

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.Writer = io.Discard
	return cmd.Run(context.Background(), append([]string{"othala"}, args...))
}

func TestImportRefusesExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "othala.db")
	cfgPath := writeTestConfig(t, dir, dbPath)
	snap := writeTestSnapshot(t, dir)

	existing, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	existing.Close()

	err = runApp(t, "import", "--config", cfgPath, "--in", snap)
	if err == nil {
		t.Fatal("import into an existing database succeeded, want refusal")
	}
	if !strings.Contains(err.Error(), "exists") {
		t.Errorf("err = %v, want existing-database refusal", err)
	}
}

func TestImportForceReplaysIntoExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "othala.db")
	cfgPath := writeTestConfig(t, dir, dbPath)
	snap := writeTestSnapshot(t, dir)

	existing, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	existing.Close()

	if err := runApp(t, "import", "--config", cfgPath, "--in", snap, "--force"); err != nil {
		t.Fatalf("forced import: %v", err)
	}

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	notes, err := s.AllNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Text != "snapshot payload" {
		t.Errorf("imported notes = %v, want the snapshot note", notes)
	}
}

func TestImportMissingDatabaseNeedsNoForce(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "othala.db")
	cfgPath := writeTestConfig(t, dir, dbPath)
	snap := writeTestSnapshot(t, dir)

	if err := runApp(t, "import", "--config", cfgPath, "--in", snap); err != nil {
		t.Fatalf("import into a fresh path: %v", err)
	}
}
