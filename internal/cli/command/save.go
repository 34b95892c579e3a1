package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/connection"
	"github.com/yndnr/autosave-go/internal/server/httpserver/handler"
)

// SaveCommand returns the save command.
func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Save a set now",
		ArgsUsage: "DEFINITION",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "write to this file instead; skips backups"},
		},
		Action: saveAction,
	}
}

func saveAction(c *cli.Context) error {
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

	resp, err := s.client.Post(ctx, "/save", handler.SaveRequest{Name: name, File: c.String("file")})
	if err != nil {
		return err
	}
	var res handler.ResultResponse
	if err := connection.ParseResponse(resp, &res); err != nil {
		return withResult(err)
	}
	return s.result(name, "saved", res)
}

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write saved values back to their points",
		ArgsUsage: "DEFINITION|FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "primary (newest valid file of a set) or file (a save file path)", Value: "primary"},
			&cli.StringFlag{Name: "macros", Usage: "macro substitutions applied to point names"},
		},
		Action: restoreAction,
	}
}

func restoreAction(c *cli.Context) error {
	file, err := requireArg(c, "definition or file")
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Post(ctx, "/restore", handler.RestoreRequest{
		File:   file,
		From:   c.String("from"),
		Macros: c.String("macros"),
	})
	if err != nil {
		return err
	}
	var res handler.ResultResponse
	if err := connection.ParseResponse(resp, &res); err != nil {
		return withResult(err)
	}
	return s.result(file, "restored", res)
}

// withResult adds the command result carried in an error envelope.
func withResult(err error) error {
	var apiErr *connection.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Details) == 0 {
		return err
	}
	var res handler.ResultResponse
	if json.Unmarshal(apiErr.Details, &res) != nil || res.Status == "" {
		return err
	}
	if res.File != "" {
		return fmt.Errorf("%w (status %s, file %s)", err, res.Status, res.File)
	}
	return fmt.Errorf("%w (status %s)", err, res.Status)
}
