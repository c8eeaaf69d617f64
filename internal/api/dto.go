package api

import (
	"github.com/starford/quill/internal/engine"
	"github.com/starford/quill/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title string `json:"title" example:"Project Ideas" validate:"required"`
	Body  string `json:"body" example:"# Ideas\n\nsee [[Journal]]"`
}

// UpdateNoteRequest is the request body for replacing a note's body.
type UpdateNoteRequest struct {
	Body string `json:"body" example:"# Updated\nContent"`
}

// RenameNoteRequest is the request body for renaming a note.
type RenameNoteRequest struct {
	Title string `json:"title" example:"Better Ideas" validate:"required"`
}

// NoteDetail is the full note response type.
type NoteDetail = models.NoteDetail

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.NoteMeta `json:"notes" validate:"required"`
	Total int               `json:"total" example:"42" validate:"required"`
}

// LinksResponse lists a note's outgoing link targets.
type LinksResponse struct {
	Title string   `json:"title" example:"Journal"`
	Links []string `json:"links" validate:"required"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Title     string   `json:"title" example:"Project Ideas"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// GraphNode is a node in the note graph.
type GraphNode struct {
	ID string `json:"id" example:"Project Ideas" validate:"required"`
}

// GraphResponse wraps the note graph.
type GraphResponse struct {
	Nodes []GraphNode   `json:"nodes" validate:"required"`
	Links []models.Edge `json:"links" validate:"required"`
}

// StatusResponse reports engine health.
type StatusResponse = engine.Status
