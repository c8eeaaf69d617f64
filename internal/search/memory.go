package search

import (
	"context"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

type memEntry struct {
	doc         Document
	foldedTitle string
	foldedBody  string
}

// Memory is a map-backed Index that scans every note per query.
// It is not safe for concurrent use.
type Memory struct {
	entries map[string]memEntry // normalized title -> entry
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry)}
}

// Rebuild replaces the index contents.
func (m *Memory) Rebuild(_ context.Context, docs []Document) error {
	m.entries = make(map[string]memEntry, len(docs))
	for _, d := range docs {
		m.put(d)
	}
	return nil
}

// Put inserts or replaces one document.
func (m *Memory) Put(_ context.Context, doc Document) error {
	m.put(doc)
	return nil
}

// Remove drops one document.
func (m *Memory) Remove(_ context.Context, title string) error {
	delete(m.entries, parser.Normalize(title))
	return nil
}

// Search scans all documents for query.
func (m *Memory) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	q := prepareQuery(query)
	if q == "" {
		return []models.SearchHit{}, nil
	}
	hits := []models.SearchHit{}
	for _, e := range m.entries {
		if hit, ok := score(e.doc, e.foldedTitle, e.foldedBody, q); ok {
			hits = append(hits, hit)
		}
	}
	return rank(hits, limit), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Len returns the number of indexed documents.
func (m *Memory) Len() int { return len(m.entries) }

func (m *Memory) put(d Document) {
	m.entries[parser.Normalize(d.Title)] = memEntry{
		doc:         d,
		foldedTitle: fold(d.Title),
		foldedBody:  fold(d.Body),
	}
}

var _ Index = (*Memory)(nil)
