package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Search backends.
const (
	SearchBackendMemory = "memory"
	SearchBackendSQLite = "sqlite"
)

// Themes.
const (
	ThemeDefault = "default"
	ThemeDark    = "dark"
	ThemeNord    = "nord"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Notes  NotesConfig       `yaml:"notes"`
	Search SearchConfig      `yaml:"search"`
	Editor string            `yaml:"editor"`
	Theme  string            `yaml:"theme"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if c.Theme == "" {
		c.Theme = ThemeDefault
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Theme, validation.In(ThemeDefault, ThemeDark, ThemeNord)),
	); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig locates the notes directory.
type NotesConfig struct {
	Dir       string `yaml:"dir"`
	ListOrder string `yaml:"list_order"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if c.ListOrder == "" {
		c.ListOrder = "title"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.ListOrder, validation.In("title", "modified")),
	)
}

// SearchConfig selects the search backend. SQLitePath is only used by the
// sqlite backend; ":memory:" keeps the database in memory.
type SearchConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SearchBackendMemory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(SearchBackendMemory, SearchBackendSQLite)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == SearchBackendSQLite, validation.Required)),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Dir:       "./notes",
			ListOrder: "title",
		},
		Search: SearchConfig{
			Backend:    SearchBackendMemory,
			SQLitePath: ":memory:",
		},
		Theme: ThemeDefault,
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
