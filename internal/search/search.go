// Package search provides case-insensitive substring search over note
// titles and bodies, with an in-memory and a SQLite backend.
package search

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

// ExcerptContext is the number of runes kept on each side of the first match.
const ExcerptContext = 50

// Document is the searchable form of a note.
type Document struct {
	Title string
	Body  string
}

// Index is implemented by every search backend.
type Index interface {
	// Rebuild replaces the whole index with docs.
	Rebuild(ctx context.Context, docs []Document) error
	// Put inserts or replaces the document for doc.Title.
	Put(ctx context.Context, doc Document) error
	// Remove drops the document for title; unknown titles are ignored.
	Remove(ctx context.Context, title string) error
	// Search returns matching notes, best first. limit <= 0 means no limit.
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	Close() error
}

// Documents converts notes to search documents.
func Documents(notes []*models.Note) []Document {
	docs := make([]Document, len(notes))
	for i, n := range notes {
		docs[i] = Document{Title: n.Title, Body: n.Body}
	}
	return docs
}

// fold lower-cases s rune by rune, so rune offsets in the result line up
// with rune offsets in s.
func fold(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// prepareQuery returns the folded query, or "" when nothing should match.
func prepareQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}
	return fold(query)
}

// score counts non-overlapping matches of q in the folded title and body
// and builds the excerpt. ok is false when there is no match at all.
func score(doc Document, foldedTitle, foldedBody, q string) (models.SearchHit, bool) {
	bodyMatches := strings.Count(foldedBody, q)
	titleMatches := strings.Count(foldedTitle, q)
	if bodyMatches+titleMatches == 0 {
		return models.SearchHit{}, false
	}
	return models.SearchHit{
		Title:   doc.Title,
		Excerpt: excerpt(doc.Body, foldedBody, q),
		Matches: bodyMatches + titleMatches,
	}, true
}

// excerpt returns the body text around the first match of q, with "..."
// marking cut ends. Without a body match it returns the start of the body.
func excerpt(body, foldedBody, q string) string {
	runes := []rune(body)
	idx := strings.Index(foldedBody, q)
	if idx < 0 {
		if len(runes) > 2*ExcerptContext {
			return strings.TrimSpace(string(runes[:2*ExcerptContext])) + "..."
		}
		return strings.TrimSpace(body)
	}
	start := utf8.RuneCountInString(foldedBody[:idx])
	end := start + utf8.RuneCountInString(q)

	from := max(0, start-ExcerptContext)
	to := min(len(runes), end+ExcerptContext)
	out := strings.TrimSpace(string(runes[from:to]))
	if from > 0 {
		out = "..." + out
	}
	if to < len(runes) {
		out += "..."
	}
	return out
}

// rank orders hits by match count (descending), then by title, and applies limit.
func rank(hits []models.SearchHit, limit int) []models.SearchHit {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Matches != b.Matches {
			return a.Matches > b.Matches
		}
		if ka, kb := parser.Normalize(a.Title), parser.Normalize(b.Title); ka != kb {
			return ka < kb
		}
		return a.Title < b.Title
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
