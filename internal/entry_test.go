package internal

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/quill/internal/shell"
	"github.com/starford/quill/internal/testutil"
	pkgconfig "github.com/starford/quill/pkg/config"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Notes.Dir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunShell_OneShot(t *testing.T) {
	cfg := testConfig(t)
	out := &bytes.Buffer{}
	opts := []Option{WithConfig(cfg), WithLogger(testutil.Logger()), WithIO(strings.NewReader(""), out)}

	err := RunShell(context.Background(), func(ctx context.Context, sh *shell.Shell) error {
		return sh.New(ctx, "First", "")
	}, opts...)
	if err != nil {
		t.Fatalf("RunShell: %v", err)
	}

	// A second session sees the note written by the first.
	out.Reset()
	err = RunShell(context.Background(), func(ctx context.Context, sh *shell.Shell) error {
		return sh.Show(ctx, "first", true)
	}, opts...)
	if err != nil {
		t.Fatalf("RunShell: %v", err)
	}
	if out.String() != "# First\n\n" {
		t.Errorf("body = %q", out.String())
	}
}

func TestRunShell_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Backend = SearchBackendSQLite
	cfg.Search.SQLitePath = ":memory:"
	out := &bytes.Buffer{}

	err := RunShell(context.Background(), func(ctx context.Context, sh *shell.Shell) error {
		if err := sh.New(ctx, "Alpha", "a needle"); err != nil {
			return err
		}
		return sh.Search(ctx, "needle")
	}, WithConfig(cfg), WithLogger(testutil.Logger()), WithIO(strings.NewReader(""), out))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Found 1 result(s)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunShell_UnknownTheme(t *testing.T) {
	cfg := testConfig(t)
	cfg.Theme = "solarized"
	err := RunShell(context.Background(), func(context.Context, *shell.Shell) error { return nil },
		WithConfig(cfg), WithLogger(testutil.Logger()))
	if err == nil {
		t.Fatal("expected theme error")
	}
}

func TestRunShell_SavesSettings(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("notes:\n  dir: "+cfg.Notes.Dir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := RunShell(context.Background(), func(ctx context.Context, sh *shell.Shell) error {
		return sh.Theme(ctx, "dark")
	}, WithConfig(cfg), WithConfigPath(path), WithLogger(testutil.Logger()), WithIO(strings.NewReader(""), &bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}

	reloaded := NewDefaultConfig()
	if err := pkgconfig.Load(path, reloaded); err != nil {
		t.Fatal(err)
	}
	if reloaded.Theme != ThemeDark {
		t.Errorf("theme = %q, want %q", reloaded.Theme, ThemeDark)
	}
	if reloaded.Notes.Dir != cfg.Notes.Dir {
		t.Errorf("notes dir lost: %q", reloaded.Notes.Dir)
	}
}

func TestRunShell_WatchesOnlyWhenAsked(t *testing.T) {
	cfg := testConfig(t)
	noop := func(context.Context, *shell.Shell) error { return nil }

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := RunShell(context.Background(), noop, WithConfig(cfg), WithLogger(logger)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logs.String(), "watcher") {
		t.Errorf("one-shot command started the watcher:\n%s", logs.String())
	}

	logs.Reset()
	if err := RunShell(context.Background(), noop, WithConfig(cfg), WithLogger(logger), WithDriftWatch()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "watcher: started") {
		t.Errorf("drift watcher did not start:\n%s", logs.String())
	}
}
