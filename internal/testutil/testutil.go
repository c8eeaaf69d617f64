// Package testutil provides shared test helpers for setting up notes
// directories and engines.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/engine"
)

// WriteNote drops a raw file into dir, bypassing the engine.
func WriteNote(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestEngine opens an engine on a fresh temporary directory with logging
// discarded. It is closed when the test ends.
func TestEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	opts = append([]engine.Option{engine.WithLogger(Logger())}, opts...)
	e, err := engine.Open(context.Background(), dir, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
