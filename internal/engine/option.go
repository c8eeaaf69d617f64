package engine

import (
	"log/slog"
	"time"

	"github.com/starford/quill/internal/search"
	"github.com/starford/quill/internal/storage"
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSearchIndex replaces the default in-memory search backend.
// The engine takes ownership and closes it on Close.
func WithSearchIndex(idx search.Index) Option {
	return func(e *Engine) {
		e.search = idx
	}
}

// WithProvider replaces the file-system provider rooted at the notes dir.
func WithProvider(p storage.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithObserver registers fn to be called after every committed change.
// Observers run after the engine lock is released.
func WithObserver(fn func(Event)) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, fn)
	}
}
