package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/urfave/cli/v3"
)

const replHelpTemplate = `Commands:
{{range .VisibleCommands}}  {{join .Names ", "}}{{if .ArgsUsage}} {{.ArgsUsage}}{{end}}{{"\t"}}{{.Usage}}
{{end}}
Type 'help <command>' for its flags.
`

// Run reads commands until quit, exit, or end of input.
func (s *Shell) Run(ctx context.Context) error {
	s.println("")
	s.println(s.styles.Title.Render("quill"))
	s.println(s.styles.Muted.Render("Type 'help' for commands, 'quit' to exit"))
	s.println("")

	staleShown := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		stale := s.eng.Stale()
		if stale && !staleShown {
			s.println(s.styles.Warning.Render("Notes changed on disk; run 'reload' to pick up the changes"))
		}
		staleShown = stale

		fmt.Fprint(s.out, s.styles.Prompt.Render("quill> "))
		line, err := s.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("shell: read: %w", err)
		}
		eof := err != nil

		quit := s.Exec(ctx, line)
		if quit || eof {
			if eof {
				s.println("")
			}
			return nil
		}
	}
}

// Exec runs one command line and reports whether the user asked to quit.
// Command errors are printed, not returned.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	words, err := splitArgs(line)
	if err != nil {
		s.PrintError(err)
		return false
	}
	if len(words) == 0 {
		return false
	}
	words[0] = strings.ToLower(words[0])
	if words[0] == "?" {
		words[0] = "help"
	}

	var quit bool
	root := s.replCommand(&quit)

	// Each line is a new root command; it must not find the command that
	// started the shell in its context.
	lineCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	err = root.Run(lineCtx, append([]string{root.Name}, words...))
	var uerr *UsageError
	switch {
	case errors.As(err, &uerr):
		if uerr.Err != nil {
			s.PrintError(uerr.Err)
		}
		s.println(s.styles.Warning.Render("Usage: " + uerr.Usage))
	case err != nil:
		s.PrintError(err)
	}
	return quit
}

// replCommand builds the command tree for one REPL line: the note commands
// plus reload and quit. quit is set when the line asks to leave.
func (s *Shell) replCommand(quit *bool) *cli.Command {
	run := func(ctx context.Context, _ *cli.Command, fn func(context.Context, *Shell) error) error {
		return fn(ctx, s)
	}
	cmds := append(Commands(run),
		&cli.Command{
			Name:            "reload",
			Usage:           "Rebuild the indexes from disk",
			HideHelpCommand: true,
			OnUsageError:    usageError,
			Action:          shellAction(reloadNotes).with(run),
		},
		&cli.Command{
			Name:            "quit",
			Aliases:         []string{"exit", "q"},
			Usage:           "Leave the shell",
			HideHelpCommand: true,
			Action: func(context.Context, *cli.Command) error {
				s.println(s.styles.Muted.Render("Goodbye!"))
				*quit = true
				return nil
			},
		},
	)
	return &cli.Command{
		Name:                          "quill",
		Usage:                         "quill shell",
		Commands:                      cmds,
		Writer:                        s.out,
		ErrWriter:                     s.out,
		HideVersion:                   true,
		CustomRootCommandHelpTemplate: replHelpTemplate,
		ExitErrHandler:                func(context.Context, *cli.Command, error) {},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return fmt.Errorf("%w (try 'help')", err)
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return fmt.Errorf("unknown command %q (try 'help')", cmd.Args().First())
		},
	}
}

func reloadNotes(ctx context.Context, cmd *cli.Command, sh *Shell) error {
	if _, err := nargs(cmd, 0, 0); err != nil {
		return err
	}
	return sh.Reload(ctx)
}

// splitArgs splits a command line into words the way a POSIX shell quotes
// them. Pipes, redirections and command separators are not supported.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	words, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w (check quotes; quote words with ( or `)", err)
	}
	if p.Position >= 0 {
		return nil, errors.New("parse command: quote words containing ; & | < or >")
	}
	return words, nil
}
