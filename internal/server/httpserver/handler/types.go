package handler

import (
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

// Envelope codes that do not come from a domain error.
const (
	CodeOK           = "OK"
	CodeBadRequest   = "AS-ARG-4000"
	CodeTimeout      = "AS-SYS-5040"
	CodeCanceled     = "AS-SYS-5030"
	CodeInternal     = "AS-SYS-5000"
	CodeRateLimit    = "AS-SYS-4290"
	CodeAuthRequired = "AS-AUTH-4010"
	CodeInvalidKey   = "AS-AUTH-4011"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      CodeOK,
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// DefineSetRequest is the request body for POST /sets. Durations use Go
// syntax ("30s", "5m").
type DefineSetRequest struct {
	Name          string `json:"name"`
	Method        string `json:"method"`
	Period        string `json:"period,omitempty"`
	MonitorPeriod string `json:"monitor_period,omitempty"`
	Trigger       string `json:"trigger,omitempty"`
	Macros        string `json:"macros,omitempty"`
}

// schedule parses the trigger method and schedule of the request.
func (req DefineSetRequest) schedule() (domain.Method, domain.Schedule, error) {
	var (
		m     domain.Method
		sched domain.Schedule
		err   error
	)
	if req.Method != "" {
		if m, err = domain.ParseMethod(req.Method); err != nil {
			return 0, sched, err
		}
	}
	if sched.Period, err = parseDuration("period", req.Period); err != nil {
		return 0, sched, err
	}
	if sched.MonitorPeriod, err = parseDuration("monitor_period", req.MonitorPeriod); err != nil {
		return 0, sched, err
	}
	sched.TriggerPoint = req.Trigger
	return m, sched, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, domain.ErrInvalidArgument.WithDetailsf("%s: invalid duration %q", field, s)
	}
	return d, nil
}

// SaveRequest is the request body for POST /save.
type SaveRequest struct {
	Name string `json:"name"`
	// File overrides the output file; relative paths land in the save directory.
	File string `json:"file,omitempty"`
}

// RestoreRequest is the request body for POST /restore. With from
// "primary" File names a set; with "file" it names a save file.
type RestoreRequest struct {
	File   string `json:"file"`
	From   string `json:"from,omitempty"`
	Macros string `json:"macros,omitempty"`
}

// ResultResponse reports a completed command.
type ResultResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	File    string `json:"file,omitempty"`
}

func resultResponse(r domain.Result) ResultResponse {
	return ResultResponse{Status: r.Status.String(), Message: r.Message, File: r.File}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Heartbeat uint64           `json:"heartbeat"`
	Storage   *health.Snapshot `json:"storage,omitempty"`
	Time      string           `json:"time"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Global status.Global `json:"global"`
	Sets   []status.Set  `json:"sets"`
}

// HistoryResponse is the body of GET /sets/{name}/history.
type HistoryResponse struct {
	Set     string          `json:"set"`
	Entries []journal.Entry `json:"entries"`
}
