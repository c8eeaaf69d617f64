package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// noteTitle extracts the title from the URL. Encoded slashes and spaces are
// decoded.
func noteTitle(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(decoded)
}

func setETag(w http.ResponseWriter, sum string) {
	w.Header().Set("ETag", `"`+sum+`"`)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List note metadata
//	@Tags			notes
//	@Produce		json
//	@Param			order	query		string	false	"Sort order"	Enums(title, modified)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	order := storage.Order(r.URL.Query().Get("order"))
	if order != storage.OrderModified {
		order = storage.OrderTitle
	}
	items := h.svc.List(r.Context(), order)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{title}.
//
//	@Summary		Get a note with its links and backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			title	path		string	true	"Note title"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	note, err := h.svc.Show(r.Context(), title)
	if err != nil {
		writeError(w, "get note", title, err)
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	note, err := h.svc.Create(r.Context(), req.Title, req.Body)
	if err != nil {
		writeError(w, "create note", req.Title, err)
		return
	}
	h.writeDetail(w, r, note.Title, http.StatusCreated)
}

// UpdateNote handles PUT /api/notes/{title}.
//
//	@Summary		Replace a note's body with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			title		path	string				true	"Note title"
//	@Param			If-Match	header	string				false	"Checksum from a previous read"
//	@Param			body		body	UpdateNoteRequest	true	"New body"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	title := noteTitle(r)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.UpdateIfMatch(r.Context(), title, req.Body, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "update note", title, err)
		return
	}
	h.writeDetail(w, r, note.Title, http.StatusOK)
}

// DeleteNote handles DELETE /api/notes/{title}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			title	path	string	true	"Note title"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	if err := h.svc.Delete(r.Context(), title); err != nil {
		writeError(w, "delete note", title, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameNote handles POST /api/notes/{title}/rename.
//
//	@Summary		Rename a note; references in other notes are not rewritten
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			title	path		string				true	"Current title"
//	@Param			body	body		RenameNoteRequest	true	"New title"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title}/rename [post]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	title := noteTitle(r)
	var req RenameNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.Rename(r.Context(), title, req.Title)
	if err != nil {
		writeError(w, "rename note", title, err)
		return
	}
	h.writeDetail(w, r, note.Title, http.StatusOK)
}

// Links handles GET /api/notes/{title}/links.
//
//	@Summary		Outgoing link targets of a note, resolved or not
//	@Tags			graph
//	@Produce		json
//	@Param			title	path		string	true	"Note title"
//	@Success		200		{object}	LinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title}/links [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	links, err := h.svc.Links(r.Context(), title)
	if err != nil {
		writeError(w, "links", title, err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Title: title, Links: links})
}

// Backlinks handles GET /api/notes/{title}/backlinks.
//
//	@Summary		Notes linking to a note
//	@Tags			graph
//	@Produce		json
//	@Param			title	path		string	true	"Note title"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{title}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	back, err := h.svc.Backlinks(r.Context(), title)
	if err != nil {
		writeError(w, "backlinks", title, err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Title: title, Backlinks: back})
}

// Search handles GET /api/search.
//
//	@Summary		Case-insensitive substring search over titles and bodies
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search query; blank returns no results"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", q, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Every note and every resolved link
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	titles, edges := h.svc.Graph(r.Context())
	nodes := make([]GraphNode, len(titles))
	for i, t := range titles {
		nodes[i] = GraphNode{ID: t}
	}
	if edges == nil {
		edges = []models.Edge{}
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: edges})
}

// Status handles GET /api/status.
//
//	@Summary		Note count, link count and health flags
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Reload handles POST /api/reload.
//
//	@Summary		Rebuild every index from disk
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reload(r.Context()); err != nil {
		writeError(w, "reload", "", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, title string, status int) {
	note, err := h.svc.Show(r.Context(), title)
	if err != nil {
		writeError(w, "show note", title, err)
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, status, note)
}
