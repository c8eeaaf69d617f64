// Package shell implements the terminal front-end: one-shot commands and
// the interactive REPL share the same command methods.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/engine"
	"github.com/starford/quill/internal/parser"
	"github.com/starford/quill/internal/storage"
)

const defaultWidth = 80

// EditFunc opens path in an editor and returns when the user is done.
type EditFunc func(ctx context.Context, path string) error

// Keys passed to a SaveFunc.
const (
	SettingTheme  = "theme"
	SettingEditor = "editor"
)

// SaveFunc persists a setting changed from the shell.
type SaveFunc func(key, value string) error

// Shell runs note commands against an engine and writes styled output.
type Shell struct {
	eng    *engine.Engine
	in     *bufio.Reader
	out    io.Writer
	theme  *Theme
	styles *Styles
	md     *markdownRenderer
	order  storage.Order
	editor string
	edit   EditFunc
	save   SaveFunc
	tty    bool
	width  int
}

// Option configures a Shell.
type Option func(*Shell)

// WithIO sets the input the shell reads commands and confirmations from and
// the output it writes to.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Shell) {
		s.in = bufio.NewReader(in)
		s.out = out
	}
}

// WithTheme sets the colour theme.
func WithTheme(t *Theme) Option {
	return func(s *Shell) {
		s.theme = t
	}
}

// WithEditor sets the editor command line used by edit.
func WithEditor(cmd string) Option {
	return func(s *Shell) {
		s.editor = cmd
	}
}

// WithEditFunc replaces the editor subprocess.
func WithEditFunc(fn EditFunc) Option {
	return func(s *Shell) {
		s.edit = fn
	}
}

// WithSaveFunc sets where theme and editor changes are saved. Without it
// they last for the session.
func WithSaveFunc(fn SaveFunc) Option {
	return func(s *Shell) {
		s.save = fn
	}
}

// WithListOrder sets the order list uses when none is given.
func WithListOrder(o storage.Order) Option {
	return func(s *Shell) {
		s.order = o
	}
}

// New creates a Shell. By default it reads stdin and writes stdout.
func New(eng *engine.Engine, opts ...Option) (*Shell, error) {
	s := &Shell{
		eng:   eng,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		order: storage.OrderTitle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.theme == nil {
		s.theme = DefaultTheme()
	}
	if s.editor == "" {
		s.editor = defaultEditor()
	}
	if s.edit == nil {
		s.edit = s.runEditor
	}
	s.tty, s.width = terminal(s.out)
	if err := s.applyTheme(s.theme); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shell) applyTheme(t *Theme) error {
	md, err := newMarkdownRenderer(t, s.tty, s.width)
	if err != nil {
		return err
	}
	s.theme = t
	s.styles = NewStyles(lipgloss.NewRenderer(s.out), t)
	s.md = md
	return nil
}

// terminal reports whether w is a terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return true, defaultWidth
	}
	return true, width
}

func defaultEditor() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "vi"
}

// DefaultBody is the body given to notes created without one.
func DefaultBody(title string) string {
	return "# " + title + "\n\n"
}

// New creates a note. An empty body is replaced by a heading with the title.
func (s *Shell) New(ctx context.Context, title, body string) error {
	if body == "" {
		body = DefaultBody(strings.TrimSpace(title))
	}
	n, err := s.eng.Create(ctx, title, body)
	if err != nil {
		return err
	}
	s.println(s.styles.Success.Render("Created: " + n.Title))
	s.println(s.styles.Muted.Render("Saved to: " + filepath.Join(s.eng.Dir(), n.File)))
	return nil
}

// Show prints a note. Unless raw is set the body is rendered as Markdown and
// followed by its unresolved links and backlinks.
func (s *Shell) Show(ctx context.Context, title string, raw bool) error {
	d, err := s.eng.Show(ctx, title)
	if err != nil {
		return err
	}
	if raw {
		_, err := io.WriteString(s.out, d.Body)
		return err
	}

	s.println(s.styles.Title.Render(d.Title))
	s.println(s.styles.Muted.Render("modified " + humanize.Time(d.ModifiedAt)))
	if err := s.md.render(s.out, d.Body); err != nil {
		return err
	}
	if len(d.Unresolved) > 0 {
		s.println(s.styles.Warning.Render("Unresolved: " + strings.Join(d.Unresolved, ", ")))
	}
	if len(d.Backlinks) > 0 {
		s.println(s.styles.Muted.Render("Backlinks: " + strings.Join(d.Backlinks, ", ")))
	}
	return nil
}

// Edit replaces a note's body. A nil body opens the editor on the current
// content; "-" reads the new body from the shell's input up to a line
// holding a single "." or the end of input.
func (s *Shell) Edit(ctx context.Context, title string, body *string) error {
	n, err := s.eng.Read(ctx, title)
	if err != nil {
		return err
	}

	var next string
	switch {
	case body == nil:
		next, err = s.editInEditor(ctx, n.Title, n.Body)
		if err != nil {
			return err
		}
	case *body == "-":
		next, err = s.readBody()
		if err != nil {
			return err
		}
	default:
		next = *body
	}

	if next == n.Body {
		s.println(s.styles.Muted.Render("No changes to " + n.Title))
		return nil
	}
	// Guard against a concurrent write between reading and saving.
	if _, err := s.eng.UpdateIfMatch(ctx, n.Title, next, n.Checksum); err != nil {
		return err
	}
	s.println(s.styles.Success.Render("Saved: " + n.Title))
	return nil
}

func (s *Shell) readBody() (string, error) {
	var b strings.Builder
	for {
		line, err := s.in.ReadString('\n')
		if strings.TrimRight(line, "\r\n") == "." {
			break
		}
		b.WriteString(line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("shell: read body: %w", err)
		}
	}
	return b.String(), nil
}

func (s *Shell) editInEditor(ctx context.Context, title, body string) (string, error) {
	f, err := os.CreateTemp("", "quill-*.md")
	if err != nil {
		return "", fmt.Errorf("shell: temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	_, err = f.WriteString(body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("shell: temp file: %w", err)
	}

	if err := s.edit(ctx, path); err != nil {
		return "", fmt.Errorf("shell: edit %q: %w", title, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("shell: read edited file: %w", err)
	}
	return string(data), nil
}

// runEditor starts the configured editor attached to the process terminal.
func (s *Shell) runEditor(ctx context.Context, path string) error {
	fields := strings.Fields(s.editor)
	if len(fields) == 0 {
		return errors.New("no editor configured")
	}
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Delete removes a note, asking for confirmation unless yes is set.
func (s *Shell) Delete(ctx context.Context, title string, yes bool) error {
	n, err := s.eng.Read(ctx, title)
	if err != nil {
		return err
	}
	if !yes {
		ok, err := s.confirm(fmt.Sprintf("Delete %q?", n.Title))
		if err != nil {
			return err
		}
		if !ok {
			s.println(s.styles.Muted.Render("Aborted"))
			return nil
		}
	}
	if err := s.eng.Delete(ctx, n.Title); err != nil {
		return err
	}
	s.println(s.styles.Success.Render("Deleted: " + n.Title))
	return nil
}

func (s *Shell) confirm(question string) (bool, error) {
	fmt.Fprint(s.out, s.styles.Warning.Render(question)+" [y/N] ")
	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("shell: read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Rename changes a note's title. References to the old title are left as
// they are.
func (s *Shell) Rename(ctx context.Context, oldTitle, newTitle string) error {
	referrers, err := s.eng.Backlinks(ctx, oldTitle)
	if err != nil {
		return err
	}
	n, err := s.eng.Rename(ctx, oldTitle, newTitle)
	if err != nil {
		return err
	}
	s.println(s.styles.Success.Render(fmt.Sprintf("Renamed: %s -> %s", oldTitle, n.Title)))
	if len(referrers) > 0 {
		s.println(s.styles.Muted.Render(fmt.Sprintf("%d note(s) still link to '%s': %s",
			len(referrers), oldTitle, strings.Join(referrers, ", "))))
	}
	return nil
}

// List prints every note. An empty order uses the configured default.
func (s *Shell) List(ctx context.Context, order storage.Order) error {
	if order == "" {
		order = s.order
	}
	if order != storage.OrderTitle && order != storage.OrderModified {
		return fmt.Errorf("shell: unknown order %q", order)
	}
	metas := s.eng.List(ctx, order)
	if len(metas) == 0 {
		s.println(s.styles.Muted.Render("No notes yet"))
		return nil
	}
	s.println(s.styles.Title.Render(fmt.Sprintf("Notes (%d)", len(metas))))
	for _, m := range metas {
		s.println("  " + m.Title + "  " + s.styles.Muted.Render(humanize.Time(m.ModifiedAt)))
	}
	return nil
}

// Search prints notes containing query, best match first.
func (s *Shell) Search(ctx context.Context, query string) error {
	hits, err := s.eng.Search(ctx, query, 0)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		s.println(s.styles.Muted.Render(fmt.Sprintf("No results for '%s'", query)))
		return nil
	}
	s.println(s.styles.Title.Render(fmt.Sprintf("Found %d result(s) for '%s'", len(hits), query)))
	for _, h := range hits {
		s.println(fmt.Sprintf("  %s %s", h.Title, s.styles.Muted.Render(fmt.Sprintf("(%d)", h.Matches))))
		if h.Excerpt != "" {
			s.println("    " + s.styles.Muted.Render(h.Excerpt))
		}
	}
	return nil
}

// Links prints the link targets of a note in order of first appearance,
// marking the ones that match no note.
func (s *Shell) Links(ctx context.Context, title string) error {
	d, err := s.eng.Show(ctx, title)
	if err != nil {
		return err
	}
	links, err := s.eng.Links(ctx, d.Title)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		s.println(s.styles.Muted.Render(fmt.Sprintf("No links found in '%s'", d.Title)))
		return nil
	}
	unresolved := make(map[string]bool, len(d.Unresolved))
	for _, u := range d.Unresolved {
		unresolved[parser.Normalize(u)] = true
	}
	s.println(s.styles.Title.Render(fmt.Sprintf("Links in '%s':", d.Title)))
	for _, l := range links {
		line := "  " + s.styles.Link.Render("[["+l+"]]")
		if unresolved[parser.Normalize(l)] {
			line += " " + s.styles.Muted.Render("(no such note)")
		}
		s.println(line)
	}
	return nil
}

// Backlinks prints the notes linking to title.
func (s *Shell) Backlinks(ctx context.Context, title string) error {
	bl, err := s.eng.Backlinks(ctx, title)
	if err != nil {
		return err
	}
	if len(bl) == 0 {
		s.println(s.styles.Muted.Render(fmt.Sprintf("No backlinks found for '%s'", title)))
		return nil
	}
	s.println(s.styles.Title.Render(fmt.Sprintf("Backlinks to '%s':", title)))
	for _, b := range bl {
		s.println("  " + s.styles.Link.Render("[["+b+"]]"))
	}
	return nil
}

// Reload rebuilds the indexes from disk.
func (s *Shell) Reload(ctx context.Context) error {
	if err := s.eng.Reload(ctx); err != nil {
		return err
	}
	st := s.eng.Status()
	s.println(s.styles.Success.Render(fmt.Sprintf("Reloaded %d notes", st.Notes)))
	return nil
}

// Status prints the engine state.
func (s *Shell) Status(_ context.Context) error {
	st := s.eng.Status()
	s.println(s.styles.Title.Render("quill"))
	s.println(fmt.Sprintf("  dir:   %s", st.Dir))
	s.println(fmt.Sprintf("  notes: %s", humanize.Comma(int64(st.Notes))))
	s.println(fmt.Sprintf("  links: %s", humanize.Comma(int64(st.Links))))
	s.println(fmt.Sprintf("  theme: %s", s.theme.Name))
	if st.Stale {
		s.println("  " + s.styles.Warning.Render("notes changed on disk; run reload"))
	}
	if st.Broken != "" {
		s.println("  " + s.styles.Error.Render("indexes inconsistent: "+st.Broken))
	}
	return nil
}

// Theme prints the current theme and the available ones when name is empty.
// Otherwise it switches to the named theme and saves the choice.
func (s *Shell) Theme(_ context.Context, name string) error {
	if name == "" {
		s.println(s.styles.Title.Render("Theme: " + s.theme.Name))
		s.println(s.styles.Muted.Render("Available themes: " + strings.Join(ThemeNames(), ", ")))
		return nil
	}
	t, err := ThemeByName(strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(ThemeNames(), ", "))
	}
	if err := s.persist(SettingTheme, t.Name); err != nil {
		return err
	}
	if err := s.applyTheme(t); err != nil {
		return err
	}
	s.println(s.styles.Success.Render("Theme changed to: " + t.Name))
	return nil
}

// Editor prints the editor command when command is empty. Otherwise the
// command's program must be found on PATH; it becomes the editor and is
// saved.
func (s *Shell) Editor(_ context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		s.println(s.styles.Title.Render("Editor: " + s.editor))
		if tip := editorTip(s.editor); tip != "" {
			s.println(s.styles.Muted.Render(tip))
		}
		return nil
	}
	program := strings.Fields(command)[0]
	if _, err := exec.LookPath(program); err != nil {
		return fmt.Errorf("editor %q not found", program)
	}
	if err := s.persist(SettingEditor, command); err != nil {
		return err
	}
	s.editor = command
	s.println(s.styles.Success.Render("Editor changed to: " + command))
	if tip := editorTip(command); tip != "" {
		s.println(s.styles.Muted.Render(tip))
	}
	return nil
}

func editorTip(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch filepath.Base(fields[0]) {
	case "vi", "vim", "nvim":
		return "Press 'i' to edit, ':wq' to save and exit"
	case "nano":
		return "Ctrl+O to save, Ctrl+X to exit"
	}
	return ""
}

func (s *Shell) persist(key, value string) error {
	if s.save == nil {
		return nil
	}
	if err := s.save(key, value); err != nil {
		return fmt.Errorf("shell: save %s: %w", key, err)
	}
	return nil
}

// PrintError writes err in the error style.
func (s *Shell) PrintError(err error) {
	s.println(s.styles.Error.Render("Error: " + describe(err)))
}

// describe turns engine errors into short user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrIndexInconsistency):
		return err.Error() + " (run reload)"
	default:
		return err.Error()
	}
}

func (s *Shell) println(line string) {
	fmt.Fprintln(s.out, line)
}
