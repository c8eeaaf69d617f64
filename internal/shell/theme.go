package shell

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette used for command output and rendered notes.
type Theme struct {
	Name string

	// Header colours titles and Markdown headings.
	Header lipgloss.Color
	// Bold colours strong text.
	Bold lipgloss.Color
	// Link colours links and link targets.
	Link lipgloss.Color
	// Code colours inline code and code blocks.
	Code lipgloss.Color
	// Italic colours emphasised text.
	Italic lipgloss.Color
	// Quote colours block quotes.
	Quote lipgloss.Color

	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme uses the basic ANSI palette so it follows the terminal's colours.
func DefaultTheme() *Theme {
	return &Theme{
		Name:    "default",
		Header:  lipgloss.Color("6"),  // cyan
		Bold:    lipgloss.Color("15"), // bright white
		Link:    lipgloss.Color("4"),  // blue
		Code:    lipgloss.Color("3"),  // yellow
		Italic:  lipgloss.Color("7"),  // white
		Quote:   lipgloss.Color("8"),
		Muted:   lipgloss.Color("8"),
		Success: lipgloss.Color("2"),
		Warning: lipgloss.Color("3"),
		Error:   lipgloss.Color("1"),
	}
}

// DarkTheme is the bright ANSI variant for dark backgrounds.
func DarkTheme() *Theme {
	return &Theme{
		Name:    "dark",
		Header:  lipgloss.Color("14"),
		Bold:    lipgloss.Color("7"),
		Link:    lipgloss.Color("12"),
		Code:    lipgloss.Color("11"),
		Italic:  lipgloss.Color("8"),
		Quote:   lipgloss.Color("8"),
		Muted:   lipgloss.Color("8"),
		Success: lipgloss.Color("10"),
		Warning: lipgloss.Color("11"),
		Error:   lipgloss.Color("9"),
	}
}

// NordTheme uses the Nord palette.
func NordTheme() *Theme {
	return &Theme{
		Name:    "nord",
		Header:  lipgloss.Color("#88C0D0"),
		Bold:    lipgloss.Color("#ECEFF4"),
		Link:    lipgloss.Color("#5E81AC"),
		Code:    lipgloss.Color("#EBCB8B"),
		Italic:  lipgloss.Color("#D8DEE9"),
		Quote:   lipgloss.Color("#4C566A"),
		Muted:   lipgloss.Color("#4C566A"),
		Success: lipgloss.Color("#A3BE8C"),
		Warning: lipgloss.Color("#EBCB8B"),
		Error:   lipgloss.Color("#BF616A"),
	}
}

// ThemeNames lists the built-in themes.
func ThemeNames() []string {
	return []string{"default", "dark", "nord"}
}

// ThemeByName returns a built-in theme. An empty name selects the default.
func ThemeByName(name string) (*Theme, error) {
	switch name {
	case "", "default":
		return DefaultTheme(), nil
	case "dark":
		return DarkTheme(), nil
	case "nord":
		return NordTheme(), nil
	default:
		return nil, fmt.Errorf("shell: unknown theme %q", name)
	}
}

// Styles holds lipgloss styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Link    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Prompt  lipgloss.Style
}

// NewStyles builds styles for theme on renderer r. The renderer decides the
// colour profile, so output written to a non-terminal carries no escapes.
func NewStyles(r *lipgloss.Renderer, theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Header),
		Link: r.NewStyle().
			Foreground(theme.Link),
		Muted: r.NewStyle().
			Foreground(theme.Muted),
		Success: r.NewStyle().
			Foreground(theme.Success),
		Warning: r.NewStyle().
			Foreground(theme.Warning),
		Error: r.NewStyle().
			Foreground(theme.Error),
		Prompt: r.NewStyle().
			Bold(true).
			Foreground(theme.Link),
	}
}

// markdownRenderer renders note bodies with glamour. Plain output is used
// when the writer is not a terminal.
type markdownRenderer struct {
	tr *glamour.TermRenderer
}

func newMarkdownRenderer(theme *Theme, tty bool, width int) (*markdownRenderer, error) {
	cfg := styles.NoTTYStyleConfig
	if tty {
		cfg = styles.DarkStyleConfig
		header := string(theme.Header)
		bold := string(theme.Bold)
		link := string(theme.Link)
		code := string(theme.Code)
		italic := string(theme.Italic)
		quote := string(theme.Quote)
		cfg.Heading.Color = &header
		cfg.H1.Color = &header
		cfg.H1.BackgroundColor = nil
		cfg.Strong.Color = &bold
		cfg.Link.Color = &link
		cfg.LinkText.Color = &link
		cfg.Code.Color = &code
		cfg.Emph.Color = &italic
		cfg.BlockQuote.Color = &quote
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStyles(cfg),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("shell: markdown renderer: %w", err)
	}
	return &markdownRenderer{tr: tr}, nil
}

func (m *markdownRenderer) render(w io.Writer, body string) error {
	out, err := m.tr.Render(body)
	if err != nil {
		return fmt.Errorf("shell: render: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
