package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	version    string
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer
	watch      bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath names the config file that theme and editor changes made
// in the shell are saved to.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogger replaces the logger the entry point would otherwise build
// from the configured level.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithIO sets the terminal input and output of the shell.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.in = in
		a.out = out
	}
}

// WithDriftWatch makes RunShell watch the notes dir for external edits
// while the shell runs.
func WithDriftWatch() Option {
	return func(a *application) {
		a.watch = true
	}
}
