package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/config"
	"github.com/yndnr/autosave-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change the CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI configuration",
				Action: configShow,
			},
			{
				Name:      "set",
				Usage:     "Set a CLI configuration key (server, output, timeout, history, ca_file, api_key)",
				ArgsUsage: "KEY VALUE",
				Action:    configSet,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := *cliConfig(c)
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg.Server, cfg.Output, cfg.Timeout, cfg.CAFile = flags.Server, string(flags.Output), flags.Timeout, flags.CAFile
	if flags.APIKey != "" {
		cfg.APIKey = "***"
	}

	if flags.Output == output.FormatTable {
		fmt.Fprintf(c.App.Writer, "# %s\n", c.String("config"))
		return (&output.YAMLFormatter{}).Format(c.App.Writer, struct {
			Server  string `json:"server"`
			Output  string `json:"output"`
			Timeout string `json:"timeout"`
			History string `json:"history"`
			CAFile  string `json:"ca_file"`
			APIKey  string `json:"api_key"`
		}{cfg.Server, cfg.Output, cfg.Timeout.String(), cfg.History, cfg.CAFile, cfg.APIKey})
	}
	return output.NewFormatter(flags.Output, false).Format(c.App.Writer, cfg)
}

func configSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: config set KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)
	cfg := cliConfig(c)

	switch key {
	case "server":
		cfg.Server = value
	case "output":
		f, err := output.ParseFormat(value)
		if err != nil {
			return err
		}
		cfg.Output = string(f)
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout %q", value)
		}
		cfg.Timeout = d
	case "history":
		cfg.History = value
	case "ca_file":
		cfg.CAFile = value
	case "api_key":
		cfg.APIKey = value
		value = "***"
	default:
		return fmt.Errorf("unknown key %q", key)
	}

	path := c.String("config")
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("save cli config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s = %s (saved to %s)\n", key, value, path)
	return nil
}
