package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/layer"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/store"
	"github.com/starford/othala/internal/testutil"
)

func testServer(t *testing.T) (*Server, *layer.Layer) {
	t.Helper()

	s, r := testutil.TestStores(t)
	l, err := layer.New(s, testutil.Logger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	worker := search.NewWorker(r, testutil.Logger())
	t.Cleanup(worker.Close)

	return New(l, worker), l
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "similar_notes":
		result, err = srv.similarNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "add_note":
		result, err = srv.addNote(ctx, req)
	case "list_subjects":
		result, err = srv.listSubjects(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAddAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "add_note", map[string]interface{}{"text": "hello from mcp"})
	text := resultText(r)
	if !strings.HasPrefix(text, "created: ") {
		t.Fatalf("add result = %q", text)
	}
	id := strings.TrimPrefix(text, "created: ")

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	if r.IsError {
		t.Fatalf("read errored: %q", resultText(r))
	}
	if !strings.Contains(resultText(r), "hello from mcp") {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestAddNoteIsUndoable(t *testing.T) {
	srv, l := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{"text": "transient"})
	if !l.CanUndo() {
		t.Fatal("mcp write did not enter the undo history")
	}
	if err := l.Undo(); err != nil {
		t.Fatal(err)
	}
	ids, err := l.FindNotes(store.NoteSearch{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("notes after undo = %v", ids)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{"text": "coffee brewing log"})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "coffee"})
	if r.IsError {
		t.Fatalf("search errored: %q", resultText(r))
	}
	if !strings.Contains(resultText(r), "coffee brewing log") {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": store.NewNoteID().String()})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestReadNoteBadID(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "garbage"})
	if !r.IsError {
		t.Error("expected error for malformed id")
	}
}

func TestListSubjects(t *testing.T) {
	srv, l := testServer(t)

	r := callTool(t, srv, "list_subjects", map[string]interface{}{})
	if resultText(r) != "no subjects" {
		t.Errorf("empty list = %q", resultText(r))
	}

	if err := l.Perform(layer.AddSubject{Name: "Reading"}); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "list_subjects", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Reading") {
		t.Errorf("list = %q", resultText(r))
	}
}
