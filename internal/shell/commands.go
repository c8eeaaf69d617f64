package shell

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal/storage"
)

// Runner hands fn the Shell that cmd runs against. The quill binary opens
// the notes directory for each invocation; the REPL passes itself.
type Runner func(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, sh *Shell) error) error

type shellAction func(ctx context.Context, cmd *cli.Command, sh *Shell) error

func (a shellAction) with(run Runner) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return run(ctx, cmd, func(ctx context.Context, sh *Shell) error {
			return a(ctx, cmd, sh)
		})
	}
}

// UsageError reports a command line that does not fit the command.
type UsageError struct {
	Usage string
	Err   error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return e.Err.Error() + "; usage: " + e.Usage
	}
	return "usage: " + e.Usage
}

func (e *UsageError) Unwrap() error { return e.Err }

func usage(cmd *cli.Command) string {
	return strings.TrimSpace(cmd.Name + " " + cmd.ArgsUsage)
}

func usageError(_ context.Context, cmd *cli.Command, err error, _ bool) error {
	return &UsageError{Usage: usage(cmd), Err: err}
}

// nargs returns the positional arguments when there are between min and
// max of them. A negative max means no upper bound.
func nargs(cmd *cli.Command, minArgs, maxArgs int) ([]string, error) {
	n := cmd.NArg()
	if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		return nil, &UsageError{Usage: usage(cmd)}
	}
	return cmd.Args().Slice(), nil
}

// Commands builds the note commands shared by the quill binary and the
// REPL. run supplies the Shell each command works on.
func Commands(run Runner) []*cli.Command {
	cmds := []*cli.Command{
		{
			Name:      "new",
			Usage:     "Create a note",
			ArgsUsage: "<title>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Note body (default: a heading with the title)"},
			},
			Action: shellAction(newNote).with(run),
		},
		{
			Name:      "show",
			Usage:     "Show a note",
			ArgsUsage: "<title>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "raw", Usage: "Print the Markdown source"},
			},
			Action: shellAction(showNote).with(run),
		},
		{
			Name:      "edit",
			Aliases:   []string{"open"},
			Usage:     "Edit a note in the editor, or replace its body",
			ArgsUsage: "<title> [-]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "New body"},
			},
			Action: shellAction(editNote).with(run),
		},
		{
			Name:      "delete",
			Usage:     "Delete a note",
			ArgsUsage: "<title>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
			},
			Action: shellAction(deleteNote).with(run),
		},
		{
			Name:      "rename",
			Usage:     "Rename a note; links to the old title are kept as written",
			ArgsUsage: "<old> <new>",
			Action:    shellAction(renameNote).with(run),
		},
		{
			Name:  "list",
			Usage: "List notes",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "order", Usage: "title or modified (default: notes.list_order)"},
			},
			Action: shellAction(listNotes).with(run),
		},
		{
			Name:      "search",
			Usage:     "Search note titles and bodies",
			ArgsUsage: "<query>",
			Action:    shellAction(searchNotes).with(run),
		},
		{
			Name:      "link",
			Usage:     "Show the links in a note",
			ArgsUsage: "<title>",
			Action:    shellAction(noteLinks).with(run),
		},
		{
			Name:      "backlinks",
			Usage:     "Show the notes linking to a note",
			ArgsUsage: "<title>",
			Action:    shellAction(noteBacklinks).with(run),
		},
		{
			Name:      "theme",
			Usage:     "Show or set the colour theme",
			ArgsUsage: "[" + strings.Join(ThemeNames(), "|") + "]",
			Action:    shellAction(showTheme).with(run),
		},
		{
			Name:      "editor",
			Usage:     "Show or set the editor",
			ArgsUsage: "[command]",
			Action:    shellAction(showEditor).with(run),
		},
		{
			Name:   "status",
			Usage:  "Show counts and index health",
			Action: shellAction(showStatus).with(run),
		},
	}
	for _, c := range cmds {
		c.HideHelpCommand = true
		c.OnUsageError = usageError
	}
	return cmds
}

func newNote(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 1)
	if err != nil {
		return err
	}
	return sh.New(ctx, a[0], cmd.String("body"))
}

func showNote(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 1)
	if err != nil {
		return err
	}
	return sh.Show(ctx, a[0], cmd.Bool("raw"))
}

func editNote(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 2)
	if err != nil {
		return err
	}
	var body *string
	if len(a) == 2 {
		if a[1] != "-" {
			return &UsageError{Usage: usage(cmd)}
		}
		body = &a[1]
	}
	if cmd.IsSet("body") {
		v := cmd.String("body")
		body = &v
	}
	return sh.Edit(ctx, a[0], body)
}

func deleteNote(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 1)
	if err != nil {
		return err
	}
	return sh.Delete(ctx, a[0], cmd.Bool("yes"))
}

func renameNote(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 2, 2)
	if err != nil {
		return err
	}
	return sh.Rename(ctx, a[0], a[1])
}

func listNotes(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	if _, err := nargs(cmd, 0, 0); err != nil {
		return err
	}
	return sh.List(ctx, storage.Order(cmd.String("order")))
}

func searchNotes(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, -1)
	if err != nil {
		return err
	}
	return sh.Search(ctx, strings.Join(a, " "))
}

func noteLinks(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 1)
	if err != nil {
		return err
	}
	return sh.Links(ctx, a[0])
}

func noteBacklinks(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 1, 1)
	if err != nil {
		return err
	}
	return sh.Backlinks(ctx, a[0])
}

func showTheme(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	a, err := nargs(cmd, 0, 1)
	if err != nil {
		return err
	}
	if len(a) == 0 {
		return sh.Theme(ctx, "")
	}
	return sh.Theme(ctx, a[0])
}

func showEditor(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	// Quote an editor that takes flags: editor "code --wait".
	return sh.Editor(ctx, strings.Join(cmd.Args().Slice(), " "))
}

func showStatus(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	if _, err := nargs(cmd, 0, 0); err != nil {
		return err
	}
	return sh.Status(ctx)
}
