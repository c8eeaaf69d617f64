// Package models defines the domain types for quill.
package models

import "time"

// Note is a titled Markdown document persisted as one file.
type Note struct {
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	File        string         `json:"file"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Checksum    string         `json:"checksum"`
	CreatedAt   time.Time      `json:"created_at"`
	ModifiedAt  time.Time      `json:"modified_at"`

	// Raw is the file content the note was read from or written as.
	Raw []byte `json:"-"`
}

// Meta returns the body-less view of n.
func (n *Note) Meta() NoteMeta {
	return NoteMeta{
		Title:      n.Title,
		File:       n.File,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}
}

// NoteMeta is a lightweight representation returned by list operations.
type NoteMeta struct {
	Title      string    `json:"title"`
	File       string    `json:"file"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NoteDetail is a note together with its place in the link graph.
type NoteDetail struct {
	Note
	// Links holds resolved outgoing links as display titles.
	Links []string `json:"links"`
	// Unresolved holds raw link targets that match no existing note.
	Unresolved []string `json:"unresolved"`
	Backlinks  []string `json:"backlinks"`
}

// SearchHit is one search result.
type SearchHit struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Matches int    `json:"matches"`
}

// Edge is a resolved directed link between two notes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
