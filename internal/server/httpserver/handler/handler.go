package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/telemetry/logger"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

const maxBodyBytes = 1 << 20

// Engine is the part of the scheduler the API drives.
type Engine interface {
	Define(ctx context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error)
	Remove(ctx context.Context, name string) (domain.Result, error)
	Reload(ctx context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error)
	ManualSave(ctx context.Context, name, file string) (domain.Result, error)
	ManualRestore(ctx context.Context, file string, from domain.RestoreFrom, macros string) (domain.Result, error)
	Trigger(name string) error
	History(ctx context.Context, name string, limit int) ([]journal.Entry, error)
}

// StorageHealth reports the storage health monitor state.
type StorageHealth interface {
	Snapshot() health.Snapshot
}

// Handler routes admin API requests.
type Handler struct {
	engine  Engine
	board   *status.Board
	storage StorageHealth
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Handler. storage may be nil.
func New(engine Engine, board *status.Board, storage StorageHealth, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if board == nil {
		board = status.NewBoard()
	}
	h := &Handler{
		engine:  engine,
		board:   board,
		storage: storage,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /status", h.handleStatus)

	h.mux.HandleFunc("POST /sets", h.handleDefineSet)
	h.mux.HandleFunc("GET /sets/{name}", h.handleGetSet)
	h.mux.HandleFunc("DELETE /sets/{name}", h.handleRemoveSet)
	h.mux.HandleFunc("POST /sets/{name}/reload", h.handleReloadSet)
	h.mux.HandleFunc("POST /sets/{name}/trigger", h.handleTriggerSet)
	h.mux.HandleFunc("GET /sets/{name}/history", h.handleHistory)

	h.mux.HandleFunc("POST /save", h.handleSave)
	h.mux.HandleFunc("POST /restore", h.handleRestore)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body", err.Error())
	return false
}

// getRequestID returns the request ID set by the middleware or the client.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts engine errors to HTTP responses. details
// is attached to the envelope when non-nil.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, details any) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		h.writeError(w, r, errorCodeToHTTPStatus(code), code, err.Error(), details)
		return
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, CodeTimeout, "command did not complete in time", details)
		return
	case errors.Is(err, context.Canceled):
		h.writeError(w, r, http.StatusServiceUnavailable, CodeCanceled, "request canceled", details)
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", details)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "AS-AUTH-"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "AS-ARG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasSuffix(code, "-5040"):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
