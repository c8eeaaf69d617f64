// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes quill notes to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

const defaultSearchLimit = 20

// Notes is the engine surface the tools need. *engine.Engine implements it.
type Notes interface {
	Create(ctx context.Context, title, body string) (*models.Note, error)
	Read(ctx context.Context, title string) (*models.Note, error)
	UpdateIfMatch(ctx context.Context, title, body, ifMatch string) (*models.Note, error)
	List(ctx context.Context, order storage.Order) []models.NoteMeta
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	Links(ctx context.Context, title string) ([]string, error)
	Backlinks(ctx context.Context, title string) ([]string, error)
}

// Server wraps the MCP server with quill tools.
type Server struct {
	mcp   *server.MCPServer
	notes Notes
}

// New creates a new MCP server with all tools registered.
func New(notes Notes, version string) *Server {
	s := &Server{notes: notes}

	s.mcp = server.NewMCPServer(
		"Quill",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search over note titles and bodies. "+
			"Results are ranked by number of matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the Markdown body of a note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title (case-insensitive)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Read the note format contract first via "+
			"get_note_contract or the "+ContractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Unique note title")),
		mcp.WithString("body", mcp.Description("Markdown body; link other notes with [[Title]]")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the body of an existing note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title (case-insensitive)")),
		mcp.WithString("body", mcp.Required(), mcp.Description("New Markdown body")),
		mcp.WithString("if_match", mcp.Description("Checksum from a previous read; the update fails if the note changed since")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all note titles."),
		mcp.WithString("order", mcp.Description("title (default) or modified")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the link targets in a note, whether or not those notes exist."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the quill note format contract. "+
			"Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Note Format Contract",
			mcp.WithResourceDescription("How quill notes are titled, linked and stored."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

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
	limit := defaultSearchLimit
	if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
		limit = int(v)
	}
	results, err := s.notes.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Read(ctx, title)
	if err != nil {
		return toolError(title, err), nil
	}
	return mcp.NewToolResultText(n.Body), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := ""
	if v, err := req.RequireString("body"); err == nil {
		body = v
	}
	n, err := s.notes.Create(ctx, title, body)
	if err != nil {
		return toolError(title, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (checksum %s)", n.Title, n.Checksum)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ifMatch := ""
	if v, err := req.RequireString("if_match"); err == nil {
		ifMatch = v
	}
	n, err := s.notes.UpdateIfMatch(ctx, title, body, ifMatch)
	if err != nil {
		return toolError(title, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", n.Title, n.Checksum)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	order := storage.OrderTitle
	if v, err := req.RequireString("order"); err == nil && storage.Order(v) == storage.OrderModified {
		order = storage.OrderModified
	}
	metas := s.notes.List(ctx, order)
	if len(metas) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	titles := make([]string, len(metas))
	for i, m := range metas {
		titles[i] = m.Title
	}
	return mcp.NewToolResultText(strings.Join(titles, "\n")), nil
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.notes.Links(ctx, title)
	if err != nil {
		return toolError(title, err), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no links found"), nil
	}
	return mcp.NewToolResultText(strings.Join(links, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.notes.Backlinks(ctx, title)
	if err != nil {
		return toolError(title, err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

// toolError turns engine errors into messages a model can act on.
func toolError(title string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title))
	case errors.Is(err, apperr.ErrDuplicateTitle):
		return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", title))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("%s changed since it was read; read it again", title))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
