package command

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "Run commands interactively",
		Action:  shellAction,
	}
}

func shellAction(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	base := []string{c.App.Name,
		"--server", flags.Server,
		"--output", string(flags.Output),
		"--timeout", flags.Timeout.String(),
		"--config", c.String("config"),
	}
	if flags.Wide {
		base = append(base, "--wide")
	}

	exec := func(args []string) error {
		app := App()
		app.Writer, app.ErrWriter = c.App.Writer, c.App.ErrWriter
		app.ExitErrHandler = func(*cli.Context, error) {}
		if args[0] == "help" {
			args[0] = "--help"
		}
		return app.RunContext(c.Context, append(append([]string(nil), base...), args...))
	}

	fmt.Fprintf(c.App.Writer, "autosave shell connected to %s. Type help or exit.\n", flags.Server)
	r := repl.New("autosave> ", exec,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithHistory(repl.NewHistory(historyPath(c), repl.DefaultHistorySize)),
		repl.WithCompleter(repl.NewCompleter(commandPaths(App().Commands, ""))),
	)
	return r.Run()
}

func historyPath(c *cli.Context) string {
	if h := cliConfig(c).History; h != "" {
		return h
	}
	if cfg := c.String("config"); cfg != "" {
		return filepath.Join(filepath.Dir(cfg), "history")
	}
	return ""
}

// commandPaths lists every command as "parent child".
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		path := prefix + cmd.Name
		if cmd.Name == "shell" {
			continue
		}
		out = append(out, path)
		out = append(out, commandPaths(cmd.Subcommands, path+" ")...)
	}
	return out
}
