// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/layer"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/store"
)

// Server wraps the MCP server with Othala tools. Writes go through the
// layer, so notes an assistant creates are undoable like any other.
type Server struct {
	mcp    *server.MCPServer
	layer  *layer.Layer
	worker *search.Worker
}

// New creates a new MCP server with all Othala tools registered.
func New(l *layer.Layer, w *search.Worker) *Server {
	s := &Server{layer: l, worker: w}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note contents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("similar_notes",
		mcp.WithDescription("Find stored notes similar to a draft text, ranked by shared rare terms."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Draft text to find related notes for")),
	), s.similarNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a single note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Create a new note. Subject ids are optional; "+
			"use list_subjects to discover them."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("subject", mcp.Description("Optional subject id (UUID) to tag the note with")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("list_subjects",
		mcp.WithDescription("List all subjects with their ids and parents."),
	), s.listSubjects)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, ok := <-s.worker.Search(query)
	if !ok {
		return mcp.NewToolResultText("search superseded by a newer query, retry"), nil
	}
	return notesResult(notes)
}

func (s *Server) similarNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, ok := <-s.worker.FindSimilar(text)
	if !ok {
		return mcp.NewToolResultText("search superseded by a newer query, retry"), nil
	}
	return notesResult(notes)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := store.ParseNoteID(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid note id: %s", raw)), nil
	}
	note, err := s.layer.Note(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", raw)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	builder := store.NewNoteBuilder().Text(text).DecideID()
	if raw, err := req.RequireString("subject"); err == nil && raw != "" {
		subjectID, err := store.ParseSubjectID(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid subject id: %s", raw)), nil
		}
		builder = builder.Subject(subjectID)
	}

	if err := s.layer.Perform(layer.CreateNote{Builder: builder}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", builder.ID())), nil
}

func (s *Server) listSubjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, err := s.layer.Subjects()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(subjects) == 0 {
		return mcp.NewToolResultText("no subjects"), nil
	}
	out, _ := json.MarshalIndent(subjects, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func notesResult(notes []store.Note) (*mcp.CallToolResult, error) {
	if len(notes) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
