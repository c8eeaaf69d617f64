// Package watch reports changes made to the notes directory by other
// programs. It does not reindex; callers decide what a change means.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/storage"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc receives the base name of a note file that changed on disk.
type ChangeFunc func(file string)

// Watch starts an fsnotify watcher on dir and calls fn for every note file
// that was created, written, removed or renamed, until ctx is cancelled.
// Bursts of events for the same file are collapsed into one call after
// debounce. Temp files from atomic writes and non-note files are ignored.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, fn ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Debug("watcher: started", slog.String("root", dir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Debug("watcher: stopped")
			return nil

		case <-timerCh:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			pending = make(map[string]struct{})
			for _, name := range names {
				logger.Debug("watcher: changed", slog.String("file", name))
				fn(name)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !storage.IsNoteFile(name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
