package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	"github.com/starford/quill/internal/shell"
	pkgconfig "github.com/starford/quill/pkg/config"
)

var version = "dev"

// loadConfig reads the config file named by --config. A missing file
// leaves the defaults in place; flags override both.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("notes-dir"); dir != "" {
		cfg.Notes.Dir = dir
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(cmd.String("config")),
		internal.WithVersion(version),
	}, nil
}

// runShell opens the notes for one command and hands it a shell.
func runShell(ctx context.Context, cmd *cli.Command, fn func(context.Context, *shell.Shell) error, extra ...internal.Option) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunShell(ctx, fn, append(opts, extra...)...)
}

func oneShot(ctx context.Context, cmd *cli.Command, fn func(context.Context, *shell.Shell) error) error {
	return runShell(ctx, cmd, fn)
}

func repl(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 0 {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}
	return runShell(ctx, cmd, func(ctx context.Context, sh *shell.Shell) error {
		return sh.Run(ctx)
	}, internal.WithDriftWatch())
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "quill",
		Usage:   "Terminal notes with [[links]], backlinks and full-text search",
		Version: version,
		Action:  repl,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("QUILL_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "notes-dir",
				Aliases: []string{"d"},
				Usage:   "Notes directory (overrides notes.dir)",
				Sources: cli.EnvVars("QUILL_NOTES_DIR"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Commands: append(shell.Commands(oneShot),
			&cli.Command{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			&cli.Command{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: mcp,
			},
		),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "quill:", err)
		os.Exit(1)
	}
}
