package command

import (
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/autosave-go/internal/cli/connection"
	"github.com/yndnr/autosave-go/internal/cli/output"
	"github.com/yndnr/autosave-go/internal/server/httpserver/handler"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show global and per-set save status",
		Action: statusAction,
	}
}

// setRow is the table view of a set.
type setRow struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Methods     string    `json:"methods"`
	Enabled     string    `json:"enabled" table:"wide"`
	Pending     string    `json:"pending" table:"wide"`
	Points      int       `json:"points"`
	Unreachable int       `json:"unreachable"`
	LastSave    time.Time `json:"last_save"`
	File        string    `json:"file" table:"wide"`
	Message     string    `json:"message"`
}

func toRows(sets []status.Set) []setRow {
	rows := make([]setRow, len(sets))
	for i, s := range sets {
		rows[i] = setRow{
			Name:        s.Name,
			Status:      s.Text,
			Methods:     s.Requested,
			Enabled:     s.Enabled,
			Pending:     s.Pending,
			Points:      s.Points,
			Unreachable: s.Unreachable,
			LastSave:    s.LastSave,
			File:        s.File,
			Message:     s.Message,
		}
	}
	return rows
}

func statusAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Get(ctx, "/status")
	if err != nil {
		return err
	}
	var st handler.StatusResponse
	if err := connection.ParseResponse(resp, &st); err != nil {
		return err
	}

	if s.flags.Output != output.FormatTable {
		return s.render(st, nil)
	}
	g := st.Global
	s.printf("Status:    %s\n", g.Text)
	s.printf("Heartbeat: %d\n", g.Heartbeat)
	s.printf("Storage:   %s\n", healthyText(g.Healthy))
	if g.LastEvent != "" {
		s.printf("Last:      %s\n", g.LastEvent)
	}
	s.printf("\n")
	return s.render(nil, toRows(st.Sets))
}

func healthyText(ok bool) string {
	if ok {
		return "healthy"
	}
	return "degraded"
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server and storage health",
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.context()
	defer cancel()

	resp, err := s.client.Get(ctx, "/health")
	if err != nil {
		return err
	}
	degraded := resp.StatusCode == http.StatusServiceUnavailable
	if degraded {
		// A degraded server still answers with a normal body.
		resp.StatusCode = http.StatusOK
	}
	var h handler.HealthResponse
	if err := connection.ParseResponse(resp, &h); err != nil {
		return err
	}

	if s.flags.Output != output.FormatTable {
		if err := s.render(h, nil); err != nil {
			return err
		}
	} else {
		s.printf("Server %s at %s (heartbeat %d)\n", h.Status, s.client.BaseURL(), h.Heartbeat)
		if h.Storage != nil && h.Storage.LastError != "" {
			s.printf("  storage: %s\n", h.Storage.LastError)
		}
	}
	if degraded {
		return errors.New("storage degraded")
	}
	return nil
}
