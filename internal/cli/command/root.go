package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/config"
	"github.com/yndnr/autosave-go/internal/cli/connection"
	"github.com/yndnr/autosave-go/internal/cli/output"
	"github.com/yndnr/autosave-go/internal/infra/buildinfo"
	"github.com/yndnr/autosave-go/internal/infra/tlsroots"
)

const metaConfig = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "autosave-cli",
		Usage:   "Manage a running autosave server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			HealthCommand(),
			SetCommand(),
			SaveCommand(),
			RestoreCommand(),
			ConfigCommand(),
			ShellCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load cli config: %w", err)
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[metaConfig] = cfg
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "autosave server address (default from cli config)",
			EnvVars: []string{"AUTOSAVE_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"AUTOSAVE_OUTPUT"},
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle of extra CAs trusted for https servers",
			EnvVars: []string{"AUTOSAVE_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Bearer token for servers that require an API key",
			EnvVars: []string{"AUTOSAVE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"AUTOSAVE_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// GlobalFlags are the resolved global settings of one invocation.
type GlobalFlags struct {
	Server  string
	Output  output.Format
	Wide    bool
	Timeout time.Duration
	CAFile  string
	APIKey  string
}

// ParseGlobalFlags merges flags over the CLI config file.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg := cliConfig(c)
	f := &GlobalFlags{
		Server:  cfg.Server,
		Wide:    c.Bool("wide"),
		Timeout: cfg.Timeout,
		CAFile:  cfg.CAFile,
		APIKey:  cfg.APIKey,
	}
	if s := c.String("server"); s != "" {
		f.Server = s
	}
	if ca := c.String("ca-file"); ca != "" {
		f.CAFile = ca
	}
	if key := c.String("api-key"); key != "" {
		f.APIKey = key
	}
	if d := c.Duration("timeout"); d > 0 {
		f.Timeout = d
	}
	format := cfg.Output
	if o := c.String("output"); o != "" {
		format = o
	}
	var err error
	if f.Output, err = output.ParseFormat(format); err != nil {
		return nil, err
	}
	return f, nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// session bundles what an action needs to call the server and print.
type session struct {
	flags  *GlobalFlags
	client *connection.HTTPClient
	c      *cli.Context
}

func newSession(c *cli.Context) (*session, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	var opts []connection.Option
	if flags.CAFile != "" {
		pool := tlsroots.NewPool()
		if err := pool.AddCertFile(flags.CAFile); err != nil {
			return nil, err
		}
		opts = append(opts, connection.WithTLSConfig(pool.ClientConfig()))
	}
	if flags.APIKey != "" {
		opts = append(opts, connection.WithAPIKey(flags.APIKey))
	}
	return &session{
		flags:  flags,
		client: connection.NewHTTPClient(flags.Server, flags.Timeout, opts...),
		c:      c,
	}, nil
}

func (s *session) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.c.Context, s.flags.Timeout)
}

// render prints data in the selected format. table, when not nil, is
// used instead of data for table output.
func (s *session) render(data any, table any) error {
	if s.flags.Output == output.FormatTable && table != nil {
		data = table
	}
	return output.NewFormatter(s.flags.Output, s.flags.Wide).Format(s.c.App.Writer, data)
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.c.App.Writer, format, args...)
}

// requireArg returns the first positional argument.
func requireArg(c *cli.Context, what string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s required", what)
	}
	return v, nil
}
