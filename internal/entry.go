// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/engine"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/search"
	"github.com/starford/quill/internal/shell"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/watch"
	pkgconfig "github.com/starford/quill/pkg/config"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// textLogger is used by the terminal front-ends, which keep stdout for
// their own output.
func (a *application) textLogger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// OpenEngine opens the notes directory with the configured search backend.
func OpenEngine(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...engine.Option) (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Search.Backend == SearchBackendSQLite {
		idx, err := search.OpenSQLite(cfg.Search.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init search index: %w", err)
		}
		opts = append(opts, engine.WithSearchIndex(idx))
	}
	opts = append(opts, extra...)

	eng, err := engine.Open(ctx, cfg.Notes.Dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	return eng, nil
}

// watchDrift marks eng stale when another program changes the notes dir.
// It blocks until ctx is cancelled; a watcher that cannot start is logged
// and otherwise ignored.
func watchDrift(ctx context.Context, eng *engine.Engine, logger *slog.Logger) {
	err := watch.Watch(ctx, eng.Dir(), watch.DefaultDebounce, logger, func(file string) {
		eng.MarkDrift(file)
	})
	if err != nil {
		logger.Warn("drift watcher unavailable", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP API server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Notes.Dir),
		slog.String("search_backend", cfg.Search.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker fed by engine observers.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	eng, err := OpenEngine(ctx, cfg, logger, engine.WithObserver(broker.Observe))
	if err != nil {
		return err
	}
	defer eng.Close()

	apiRouter := api.NewRouter(eng, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if eng.Status().Broken != "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"reload required"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Report external edits as notes.stale events.
	g.Go(func() error {
		watchDrift(gCtx, eng, logger)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// Stops the watcher.
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP protocol on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.textLogger()

	eng, err := OpenEngine(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Info("MCP server starting", slog.String("notes_dir", eng.Dir()))
	return mcpserver.New(eng, app.version).ServeStdio()
}

// ShellFunc runs one or more shell commands.
type ShellFunc func(ctx context.Context, sh *shell.Shell) error

// RunShell opens the engine, builds a terminal shell from the configuration
// and passes it to fn. With WithDriftWatch the notes dir is watched for
// external edits while fn runs.
func RunShell(ctx context.Context, fn ShellFunc, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.textLogger()

	eng, err := OpenEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	theme, err := shell.ThemeByName(cfg.Theme)
	if err != nil {
		return err
	}
	shellOpts := []shell.Option{
		shell.WithTheme(theme),
		shell.WithListOrder(storage.Order(cfg.Notes.ListOrder)),
	}
	if cfg.Editor != "" {
		shellOpts = append(shellOpts, shell.WithEditor(cfg.Editor))
	}
	if path := app.configPath; path != "" {
		shellOpts = append(shellOpts, shell.WithSaveFunc(func(key, value string) error {
			return pkgconfig.Set(path, key, value)
		}))
	}
	if app.in != nil || app.out != nil {
		in, out := app.in, app.out
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		shellOpts = append(shellOpts, shell.WithIO(in, out))
	}
	sh, err := shell.New(eng, shellOpts...)
	if err != nil {
		return err
	}

	if app.watch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			watchDrift(watchCtx, eng, logger)
		}()
		defer func() {
			stopWatch()
			<-done
		}()
	}

	return fn(ctx, sh)
}
