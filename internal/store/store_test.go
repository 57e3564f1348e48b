package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	for _, table := range []string{"notes", "subjects", "notes_subjects", "notes_search", "term_occurrences"} {
		var count int
		if err := s.db.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestAddNote_RoundTrip(t *testing.T) {
	s := testStore(t)
	sub, err := s.AddSubject("Work", SubjectID{})
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}

	created := time.Unix(0, 1700000000_000000000)
	builder := NewNoteBuilder().
		Text("buy milk").
		Subject(sub.ID).
		TaskState(Todo).
		CreatedAt(created)
	added, err := s.AddNote(builder)
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	got, err := s.GetNote(added.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Text != "buy milk" {
		t.Errorf("text = %q", got.Text)
	}
	if got.TaskState != Todo {
		t.Errorf("task state = %v", got.TaskState)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
	if len(got.Subjects) != 1 || got.Subjects[0] != sub.ID {
		t.Errorf("subjects = %v, want [%v]", got.Subjects, sub.ID)
	}
	if got.DoneAt != nil {
		t.Errorf("done_at = %v, want nil", got.DoneAt)
	}
	if got.ModifiedAt.Before(got.CreatedAt) {
		t.Errorf("modified_at %v before created_at %v", got.ModifiedAt, got.CreatedAt)
	}
}

func TestAddNote_Defaults(t *testing.T) {
	s := testStore(t)
	before := time.Now()
	n, err := s.AddNote(NewNoteBuilder().Text("plain"))
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n.ID.IsZero() {
		t.Error("id not assigned")
	}
	if n.TaskState != NotATask {
		t.Errorf("task state = %v, want NotATask", n.TaskState)
	}
	if n.CreatedAt.Before(before) {
		t.Errorf("created_at %v before test start", n.CreatedAt)
	}
	if !n.ModifiedAt.Equal(n.CreatedAt) {
		t.Errorf("modified_at %v != created_at %v", n.ModifiedAt, n.CreatedAt)
	}
	if len(n.Subjects) != 0 {
		t.Errorf("subjects = %v, want empty", n.Subjects)
	}
}

func TestFindNotes_BySubject(t *testing.T) {
	s := testStore(t)
	subjectA, _ := s.AddSubject("A", SubjectID{})
	subjectB, _ := s.AddSubject("B", SubjectID{})

	n1, err := s.AddNote(NewNoteBuilder().Text("note one").Subject(subjectA.ID))
	if err != nil {
		t.Fatal(err)
	}
	n2, err := s.AddNote(NewNoteBuilder().Text("note two").Subject(subjectB.ID))
	if err != nil {
		t.Fatal(err)
	}

	ids, err := s.FindNotes(NoteSearch{}.WithSubject(subjectA.ID))
	if err != nil {
		t.Fatalf("FindNotes: %v", err)
	}
	if len(ids) != 1 || ids[0] != n1.ID {
		t.Errorf("subject A ids = %v, want [%v]", ids, n1.ID)
	}

	ids, err = s.FindNotes(NoteSearch{})
	if err != nil {
		t.Fatalf("FindNotes: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("all ids = %v, want 2", ids)
	}
	// Newest first.
	if ids[0] != n2.ID || ids[1] != n1.ID {
		t.Errorf("all ids = %v, want [%v %v]", ids, n2.ID, n1.ID)
	}
}

func TestFindNotes_SubjectlessNoteListed(t *testing.T) {
	s := testStore(t)
	n, err := s.AddNote(NewNoteBuilder().Text("no subjects"))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := s.FindNotes(NoteSearch{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != n.ID {
		t.Errorf("ids = %v, want [%v]", ids, n.ID)
	}
}

func TestFindNotes_NoDuplicatesForMultiSubjectNote(t *testing.T) {
	s := testStore(t)
	subjectA, _ := s.AddSubject("A", SubjectID{})
	subjectB, _ := s.AddSubject("B", SubjectID{})

	n, err := s.AddNote(NewNoteBuilder().Text("tagged twice").Subject(subjectA.ID).Subject(subjectB.ID))
	if err != nil {
		t.Fatal(err)
	}

	ids, err := s.FindNotes(NoteSearch{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != n.ID {
		t.Errorf("ids = %v, want exactly one entry for %v", ids, n.ID)
	}

	ids, err = s.FindNotes(NoteSearch{}.WithTaskOnly(false))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("ids = %v, want 1", ids)
	}
}

func TestFindNotes_TaskFiltering(t *testing.T) {
	s := testStore(t)
	notTask, err := s.AddNote(NewNoteBuilder().Text("just a note"))
	if err != nil {
		t.Fatal(err)
	}
	todo, err := s.AddNote(NewNoteBuilder().Text("do this").TaskState(Todo))
	if err != nil {
		t.Fatal(err)
	}
	done, err := s.AddNote(NewNoteBuilder().Text("did that").TaskState(Done))
	if err != nil {
		t.Fatal(err)
	}

	ids, err := s.FindNotes(NoteSearch{}.WithTaskOnly(true))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("task ids = %v, want 2", ids)
	}
	// Todo before Done regardless of recency.
	if ids[0] != todo.ID || ids[1] != done.ID {
		t.Errorf("task ids = %v, want [%v %v]", ids, todo.ID, done.ID)
	}
	for _, id := range ids {
		if id == notTask.ID {
			t.Error("non-task note included in task-only results")
		}
	}
}

func TestFindNotes_TaskReentersOnEdit(t *testing.T) {
	s := testStore(t)
	n, err := s.AddNote(NewNoteBuilder().Text("promote me"))
	if err != nil {
		t.Fatal(err)
	}

	ids, _ := s.FindNotes(NoteSearch{}.WithTaskOnly(true))
	if len(ids) != 0 {
		t.Fatalf("task ids = %v, want none", ids)
	}

	n.TaskState = Todo
	if _, err := s.UpdateNote(n); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	ids, _ = s.FindNotes(NoteSearch{}.WithTaskOnly(true))
	if len(ids) != 1 || ids[0] != n.ID {
		t.Errorf("task ids = %v, want [%v]", ids, n.ID)
	}
}

func TestUpdateNote_DoneAtMaintained(t *testing.T) {
	s := testStore(t)
	n, err := s.AddNote(NewNoteBuilder().Text("task").TaskState(Todo))
	if err != nil {
		t.Fatal(err)
	}
	if n.DoneAt != nil {
		t.Fatalf("done_at set on Todo note")
	}

	n.TaskState = Done
	updated, err := s.UpdateNote(n)
	if err != nil {
		t.Fatal(err)
	}
	if updated.DoneAt == nil {
		t.Fatal("done_at not stamped on Done note")
	}

	updated.TaskState = Todo
	updated, err = s.UpdateNote(updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.DoneAt != nil {
		t.Errorf("done_at = %v after reverting to Todo, want nil", updated.DoneAt)
	}
}

func TestUpdateNote_SubjectChangeMovesQueries(t *testing.T) {
	s := testStore(t)
	subjectA, _ := s.AddSubject("A", SubjectID{})
	subjectB, _ := s.AddSubject("B", SubjectID{})

	n, err := s.AddNote(NewNoteBuilder().Text("moving").Subject(subjectA.ID))
	if err != nil {
		t.Fatal(err)
	}

	n.Subjects = []SubjectID{subjectB.ID}
	if _, err := s.UpdateNote(n); err != nil {
		t.Fatal(err)
	}

	ids, _ := s.FindNotes(NoteSearch{}.WithSubject(subjectA.ID))
	if len(ids) != 0 {
		t.Errorf("subject A still lists %v", ids)
	}
	ids, _ = s.FindNotes(NoteSearch{}.WithSubject(subjectB.ID))
	if len(ids) != 1 || ids[0] != n.ID {
		t.Errorf("subject B ids = %v, want [%v]", ids, n.ID)
	}
}

func TestDeleteNote(t *testing.T) {
	s := testStore(t)
	n, err := s.AddNote(NewNoteBuilder().Text("short lived"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNote(n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	if _, err := s.GetNote(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote after delete = %v, want ErrNotFound", err)
	}
	ids, _ := s.FindNotes(NoteSearch{})
	if len(ids) != 0 {
		t.Errorf("ids after delete = %v, want none", ids)
	}

	if err := s.DeleteNote(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestGetNotes_MissingIDFails(t *testing.T) {
	s := testStore(t)
	n, _ := s.AddNote(NewNoteBuilder().Text("present"))
	_, err := s.GetNotes([]NoteID{n.ID, NewNoteID()})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNotes = %v, want ErrNotFound", err)
	}
}

func TestSubjects_Tree(t *testing.T) {
	s := testStore(t)
	root, err := s.AddSubject("Projects", SubjectID{})
	if err != nil {
		t.Fatal(err)
	}
	child, err := s.AddSubject("Go", root.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Same name under a different parent is fine.
	if _, err := s.AddSubject("Go", SubjectID{}); err != nil {
		t.Fatalf("same name, different parent: %v", err)
	}
	// Duplicate within one parent conflicts.
	if _, err := s.AddSubject("Go", root.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate subject = %v, want ErrConflict", err)
	}

	children, err := s.GetSubjectChildren(root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 || children[0] != child.ID {
		t.Errorf("children = %v, want [%v]", children, child.ID)
	}

	if err := s.SetSubjectParent(child.ID, SubjectID{}); err != nil {
		t.Fatalf("SetSubjectParent: %v", err)
	}
	children, _ = s.GetSubjectChildren(root.ID)
	if len(children) != 0 {
		t.Errorf("children after reparent = %v", children)
	}
}

func TestDeleteSubject_KeepsNotes(t *testing.T) {
	s := testStore(t)
	sub, _ := s.AddSubject("Ephemeral", SubjectID{})
	n, err := s.AddNote(NewNoteBuilder().Text("survivor").Subject(sub.ID))
	if err != nil {
		t.Fatal(err)
	}

	count, err := s.SubjectNoteCount(sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("note count = %d, want 1", count)
	}

	if err := s.DeleteSubject(sub.ID); err != nil {
		t.Fatalf("DeleteSubject: %v", err)
	}

	got, err := s.GetNote(n.ID)
	if err != nil {
		t.Fatalf("note deleted with subject: %v", err)
	}
	if len(got.Subjects) != 0 {
		t.Errorf("subjects = %v, want none", got.Subjects)
	}

	// The now-untagged note must still show up in the global listing.
	ids, err := s.FindNotes(NoteSearch{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != n.ID {
		t.Errorf("global listing = %v, want [%s]", ids, n.ID)
	}
}

func TestDenormalizedTableAgreesWithAssociations(t *testing.T) {
	s := testStore(t)
	sub, _ := s.AddSubject("Direct", SubjectID{})
	n, err := s.AddNote(NewNoteBuilder().Text("direct mutation target"))
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the association table directly; the triggers must keep the
	// denormalized view in lockstep.
	if _, err := s.db.Exec(`INSERT INTO notes_subjects (note_id, subject_id) VALUES (?, ?)`,
		n.ID.String(), sub.ID.String()); err != nil {
		t.Fatal(err)
	}

	var searchRows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes_search WHERE note_id = ? AND subject_id = ?`,
		n.ID.String(), sub.ID.String()).Scan(&searchRows); err != nil {
		t.Fatal(err)
	}
	if searchRows != 1 {
		t.Fatalf("search rows = %d, want 1", searchRows)
	}

	if _, err := s.db.Exec(`DELETE FROM notes_subjects WHERE note_id = ? AND subject_id = ?`,
		n.ID.String(), sub.ID.String()); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes_search WHERE note_id = ? AND subject_id = ?`,
		n.ID.String(), sub.ID.String()).Scan(&searchRows); err != nil {
		t.Fatal(err)
	}
	if searchRows != 0 {
		t.Fatalf("search rows = %d after delete, want 0", searchRows)
	}
}
