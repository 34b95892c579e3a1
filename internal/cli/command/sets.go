package command

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/connection"
	"github.com/yndnr/autosave-go/internal/cli/output"
	"github.com/yndnr/autosave-go/internal/server/httpserver/handler"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

func scheduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "periodic, triggered, monitored or manual"},
		&cli.StringFlag{Name: "period", Usage: "save period for periodic sets (e.g. 30s)"},
		&cli.StringFlag{Name: "monitor-period", Usage: "change check period for monitored sets"},
		&cli.StringFlag{Name: "trigger", Usage: "trigger point for triggered sets"},
		&cli.StringFlag{Name: "macros", Usage: "macro substitutions, e.g. P=ioc:,R=m1"},
	}
}

func scheduleRequest(c *cli.Context, name string) handler.DefineSetRequest {
	return handler.DefineSetRequest{
		Name:          name,
		Method:        c.String("method"),
		Period:        c.String("period"),
		MonitorPeriod: c.String("monitor-period"),
		Trigger:       c.String("trigger"),
		Macros:        c.String("macros"),
	}
}

// SetCommand returns the set subcommand group.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:    "set",
		Aliases: []string{"sets"},
		Usage:   "Manage save sets",
		Subcommands: []*cli.Command{
			{
				Name:      "define",
				Usage:     "Define a set, or add a method to an existing one",
				ArgsUsage: "DEFINITION",
				Flags:     scheduleFlags(),
				Action:    setDefine,
			},
			{
				Name:      "get",
				Usage:     "Show one set",
				ArgsUsage: "DEFINITION",
				Action:    setGet,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a set",
				ArgsUsage: "DEFINITION",
				Action:    setRemove,
			},
			{
				Name:      "reload",
				Usage:     "Re-read a set's definition; methods are kept unless given",
				ArgsUsage: "DEFINITION",
				Flags:     scheduleFlags(),
				Action:    setReload,
			},
			{
				Name:      "trigger",
				Usage:     "Request a save on the next cycle",
				ArgsUsage: "DEFINITION",
				Action:    setTrigger,
			},
			{
				Name:      "history",
				Usage:     "Show recent saves of a set",
				ArgsUsage: "DEFINITION",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of entries"},
				},
				Action: setHistory,
			},
		},
	}
}

func setPath(name string, suffix string) string {
	return "/sets/" + url.PathEscape(name) + suffix
}

func setDefine(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	if c.String("method") == "" {
		return fmt.Errorf("--method required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Post(ctx, "/sets", scheduleRequest(c, name))
	if err != nil {
		return err
	}
	var res handler.ResultResponse
	if err := connection.ParseResponse(resp, &res); err != nil {
		return err
	}
	return s.result(name, "defined", res)
}

func setGet(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Get(ctx, setPath(name, ""))
	if err != nil {
		return err
	}
	var set status.Set
	if err := connection.ParseResponse(resp, &set); err != nil {
		return err
	}
	return s.render(set, nil)
}

func setRemove(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Delete(ctx, setPath(name, ""))
	if err != nil {
		return err
	}
	var res handler.ResultResponse
	if err := connection.ParseResponse(resp, &res); err != nil {
		return err
	}
	return s.result(name, "removed", res)
}

func setReload(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Post(ctx, setPath(name, "/reload"), scheduleRequest(c, name))
	if err != nil {
		return err
	}
	var res handler.ResultResponse
	if err := connection.ParseResponse(resp, &res); err != nil {
		return err
	}
	return s.result(name, "reloaded", res)
}

func setTrigger(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Post(ctx, setPath(name, "/trigger"), nil)
	if err != nil {
		return err
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	s.printf("%s: save requested\n", name)
	return nil
}

// historyRow is the table view of a journal entry.
type historyRow struct {
	Time    string `json:"time"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Points  int    `json:"points"`
	Elapsed string `json:"elapsed"`
	File    string `json:"file" table:"wide"`
	Message string `json:"message"`
}

func setHistory(c *cli.Context) error {
	name, err := requireArg(c, "definition")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Get(ctx, setPath(name, "/history")+"?limit="+strconv.Itoa(c.Int("limit")))
	if err != nil {
		return err
	}
	var h handler.HistoryResponse
	if err := connection.ParseResponse(resp, &h); err != nil {
		return err
	}

	rows := make([]historyRow, len(h.Entries))
	for i, e := range h.Entries {
		msg := e.Message
		if e.Error != "" {
			msg = e.Error
		}
		rows[i] = historyRow{
			Time:    e.Time.Local().Format("2006-01-02 15:04:05"),
			Kind:    string(e.Kind),
			Status:  e.Status,
			Points:  e.Points,
			Elapsed: e.Elapsed.String(),
			File:    e.File,
			Message: msg,
		}
	}
	return s.render(h, rows)
}

// result prints a command result.
func (s *session) result(name, verb string, res handler.ResultResponse) error {
	if s.flags.Output != output.FormatTable {
		return s.render(res, nil)
	}
	s.printf("%s: %s (%s)", name, verb, res.Status)
	if res.File != "" {
		s.printf(" -> %s", res.File)
	}
	if res.Message != "" {
		s.printf(": %s", res.Message)
	}
	s.printf("\n")
	return nil
}
