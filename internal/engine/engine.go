// Package engine composes the note store, the link graph, and the search
// index behind one API. Every mutation writes to disk first and then updates
// both indexes; if the index update fails the disk change is rolled back.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/graph"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/search"
	"github.com/starford/quill/internal/storage"
)

// EventKind names a committed change.
type EventKind string

// Event kinds.
const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventRenamed  EventKind = "renamed"
	EventReloaded EventKind = "reloaded"
	EventStale    EventKind = "stale"
)

// Event describes a committed change. OldTitle is set for renames.
type Event struct {
	Kind     EventKind `json:"kind"`
	Title    string    `json:"title,omitempty"`
	OldTitle string    `json:"old_title,omitempty"`
}

// Status summarizes the engine state.
type Status struct {
	Dir    string `json:"dir"`
	Notes  int    `json:"notes"`
	Links  int    `json:"links"`
	Stale  bool   `json:"stale"`
	Broken string `json:"broken,omitempty"`
}

// Engine owns the store and both indexes. It is safe for concurrent use;
// one coarse lock serializes mutations.
type Engine struct {
	mu sync.RWMutex

	dir       string
	provider  storage.Provider
	store     *storage.Store
	graph     *graph.Index
	search    search.Index
	logger    *slog.Logger
	now       func() time.Time
	observers []func(Event)

	// broken is set when a rollback failed; mutations refuse until Reload.
	broken error
	// stale is set when the notes dir changed behind the engine's back.
	stale bool
}

// Open loads every note under dir and builds the indexes.
// The directory is created if missing. The search index is closed if Open
// fails.
func Open(ctx context.Context, dir string, opts ...Option) (*Engine, error) {
	e := &Engine{dir: dir, graph: graph.New()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.search == nil {
		e.search = search.NewMemory()
	}
	if e.provider == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = e.search.Close()
			return nil, fmt.Errorf("engine: create notes dir: %w: %w", apperr.ErrIOFailure, err)
		}
		fs, err := storage.NewFS(dir)
		if err != nil {
			_ = e.search.Close()
			return nil, fmt.Errorf("engine: %w: %w", apperr.ErrIOFailure, err)
		}
		e.provider = fs
	}
	e.store = storage.NewStore(e.provider, e.logger, e.now)

	if err := e.load(ctx); err != nil {
		_ = e.search.Close()
		return nil, err
	}
	e.logger.Debug("engine: opened", slog.String("dir", dir), slog.Int("notes", e.store.Len()))
	return e, nil
}

// Close releases the search backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.search.Close()
}

// Dir returns the notes directory.
func (e *Engine) Dir() string { return e.dir }

// Reload rebuilds the catalog and both indexes from disk. It is always safe
// and clears both the stale and the inconsistency state.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	err := e.load(ctx)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(Event{Kind: EventReloaded})
	return nil
}

func (e *Engine) load(ctx context.Context) error {
	notes, err := e.store.LoadAll()
	if err != nil {
		e.broken = fmt.Errorf("%w: load failed: %w", apperr.ErrIndexInconsistency, err)
		return fmt.Errorf("engine: load: %w", err)
	}
	e.graph.Rebuild(notes)
	if err := e.search.Rebuild(ctx, search.Documents(notes)); err != nil {
		e.broken = fmt.Errorf("%w: search rebuild failed: %w", apperr.ErrIndexInconsistency, err)
		return fmt.Errorf("engine: rebuild search: %w: %w", apperr.ErrIOFailure, err)
	}
	e.broken = nil
	e.stale = false
	return nil
}

// Create writes a new note and indexes it.
func (e *Engine) Create(ctx context.Context, title, body string) (*models.Note, error) {
	n, err := e.create(ctx, title, body)
	if err != nil {
		return nil, err
	}
	e.notify(Event{Kind: EventCreated, Title: n.Title})
	return n, nil
}

func (e *Engine) create(ctx context.Context, title, body string) (*models.Note, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, err
	}

	n, err := e.store.Create(title, body)
	if err != nil {
		return nil, err
	}
	if err := e.search.Put(ctx, document(n)); err != nil {
		return nil, e.rollback("create", n.Title, err, func() error {
			return e.store.Delete(n.Title)
		})
	}
	e.graph.Put(n.Title, n.Body)
	e.logger.Debug("engine: created", slog.String("title", n.Title), slog.String("file", n.File))
	return n, nil
}

// Read returns a note with its body.
func (e *Engine) Read(_ context.Context, title string) (*models.Note, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Read(title)
}

// Show returns a note with its resolved links, unresolved targets, and backlinks.
func (e *Engine) Show(_ context.Context, title string) (*models.NoteDetail, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, err := e.store.Read(title)
	if err != nil {
		return nil, err
	}
	resolved, unresolved := e.graph.Split(n.Title)
	return &models.NoteDetail{
		Note:       *n,
		Links:      resolved,
		Unresolved: unresolved,
		Backlinks:  e.graph.Backlinks(n.Title),
	}, nil
}

// Update replaces a note's body.
func (e *Engine) Update(ctx context.Context, title, body string) (*models.Note, error) {
	return e.UpdateIfMatch(ctx, title, body, "")
}

// UpdateIfMatch replaces a note's body if its current checksum matches
// ifMatch. An empty ifMatch always matches.
func (e *Engine) UpdateIfMatch(ctx context.Context, title, body, ifMatch string) (*models.Note, error) {
	n, err := e.update(ctx, title, body, ifMatch)
	if err != nil {
		return nil, err
	}
	e.notify(Event{Kind: EventUpdated, Title: n.Title})
	return n, nil
}

func (e *Engine) update(ctx context.Context, title, body, ifMatch string) (*models.Note, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, err
	}

	prev, err := e.store.Read(title)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, prev.Checksum) {
		return nil, fmt.Errorf("%w: %q changed since it was read", apperr.ErrConflict, prev.Title)
	}
	n, err := e.store.Update(prev.Title, body)
	if err != nil {
		return nil, err
	}
	if err := e.search.Put(ctx, document(n)); err != nil {
		return nil, e.rollback("update", n.Title, err, func() error {
			return e.store.Restore(prev)
		})
	}
	e.graph.Put(n.Title, n.Body)
	e.logger.Debug("engine: updated", slog.String("title", n.Title))
	return n, nil
}

// Delete removes a note and every index entry it sourced. Links to it from
// other notes stay in their bodies and become unresolved.
func (e *Engine) Delete(ctx context.Context, title string) error {
	deleted, err := e.delete(ctx, title)
	if err != nil {
		return err
	}
	e.notify(Event{Kind: EventDeleted, Title: deleted})
	return nil
}

func (e *Engine) delete(ctx context.Context, title string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return "", err
	}

	prev, err := e.store.Read(title)
	if err != nil {
		return "", err
	}
	if err := e.store.Delete(prev.Title); err != nil {
		return "", err
	}
	if err := e.search.Remove(ctx, prev.Title); err != nil {
		return "", e.rollback("delete", prev.Title, err, func() error {
			return e.store.Restore(prev)
		})
	}
	e.graph.Remove(prev.Title)
	e.logger.Debug("engine: deleted", slog.String("title", prev.Title))
	return prev.Title, nil
}

// Rename changes a note's title and file name. References to the old title
// in other notes are not rewritten; they become unresolved.
func (e *Engine) Rename(ctx context.Context, oldTitle, newTitle string) (*models.Note, error) {
	n, prevTitle, err := e.rename(ctx, oldTitle, newTitle)
	if err != nil {
		return nil, err
	}
	e.notify(Event{Kind: EventRenamed, Title: n.Title, OldTitle: prevTitle})
	return n, nil
}

func (e *Engine) rename(ctx context.Context, oldTitle, newTitle string) (*models.Note, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, "", err
	}

	prev, err := e.store.Read(oldTitle)
	if err != nil {
		return nil, "", err
	}
	n, err := e.store.Rename(prev.Title, newTitle)
	if err != nil {
		return nil, "", err
	}
	if err := e.reindexRename(ctx, prev, n); err != nil {
		return nil, "", e.rollback("rename", prev.Title, err, func() error {
			if _, err := e.store.Rename(n.Title, prev.Title); err != nil {
				return err
			}
			return e.search.Put(ctx, document(prev))
		})
	}
	e.graph.Remove(prev.Title)
	e.graph.Put(n.Title, n.Body)
	e.logger.Debug("engine: renamed", slog.String("from", prev.Title), slog.String("to", n.Title))
	return n, prev.Title, nil
}

func (e *Engine) reindexRename(ctx context.Context, prev, n *models.Note) error {
	if err := e.search.Remove(ctx, prev.Title); err != nil {
		return err
	}
	return e.search.Put(ctx, document(n))
}

// List returns note metadata in the given order.
func (e *Engine) List(_ context.Context, order storage.Order) []models.NoteMeta {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.List(order)
}

// Search returns notes whose title or body contains query, ignoring case.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hits, err := e.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("engine: search: %w: %w", apperr.ErrIOFailure, err)
	}
	return hits, nil
}

// Links returns a note's outgoing link targets without repeats, resolved or not.
func (e *Engine) Links(_ context.Context, title string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.exists(title); err != nil {
		return nil, err
	}
	return e.graph.Links(title), nil
}

// RawLinks returns every link occurrence in a note's body.
func (e *Engine) RawLinks(_ context.Context, title string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.exists(title); err != nil {
		return nil, err
	}
	return e.graph.RawLinks(title), nil
}

// Backlinks returns the titles of notes that link to title.
func (e *Engine) Backlinks(_ context.Context, title string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.exists(title); err != nil {
		return nil, err
	}
	return e.graph.Backlinks(title), nil
}

// Graph returns every note title and every resolved edge.
func (e *Engine) Graph(_ context.Context) ([]string, []models.Edge) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.Titles(), e.graph.Edges()
}

// MarkDrift checks whether a change to file in the notes dir was made by
// someone else and, if so, marks the engine stale. It reports whether the
// engine became stale because of this call.
func (e *Engine) MarkDrift(file string) bool {
	e.mu.Lock()
	if e.stale || !e.store.Drifted(file) {
		e.mu.Unlock()
		return false
	}
	e.stale = true
	e.mu.Unlock()

	e.logger.Info("engine: notes dir changed externally", slog.String("file", file))
	e.notify(Event{Kind: EventStale, Title: file})
	return true
}

// Stale reports whether the notes dir changed externally since the last load.
func (e *Engine) Stale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stale
}

// Status reports counts and health flags.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Status{
		Dir:   e.dir,
		Notes: e.store.Len(),
		Links: len(e.graph.Edges()),
		Stale: e.stale,
	}
	if e.broken != nil {
		s.Broken = e.broken.Error()
	}
	return s
}

func (e *Engine) exists(title string) error {
	if !e.graph.Has(title) {
		return fmt.Errorf("%w: %q", apperr.ErrNotFound, title)
	}
	return nil
}

func (e *Engine) writable() error {
	if e.broken != nil {
		return fmt.Errorf("engine: refusing to write, reload required: %w", e.broken)
	}
	return nil
}

// rollback undoes a store write after cause made the index update fail.
// If undo fails too, the engine is marked inconsistent.
func (e *Engine) rollback(op, title string, cause error, undo func() error) error {
	if err := undo(); err != nil {
		e.broken = fmt.Errorf("%w: %s %q: rollback failed: %w (index error: %v)",
			apperr.ErrIndexInconsistency, op, title, err, cause)
		e.logger.Error("engine: rollback failed",
			slog.String("op", op),
			slog.String("title", title),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()))
		return e.broken
	}
	e.logger.Warn("engine: index update failed, store rolled back",
		slog.String("op", op),
		slog.String("title", title),
		slog.String("error", cause.Error()))
	return fmt.Errorf("engine: %s %q: index update: %w: %w", op, title, apperr.ErrIOFailure, cause)
}

func (e *Engine) notify(ev Event) {
	for _, fn := range e.observers {
		fn(ev)
	}
}

func document(n *models.Note) search.Document {
	return search.Document{Title: n.Title, Body: n.Body}
}
