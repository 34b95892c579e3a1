package httpserver

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/yndnr/autosave-go/internal/server/httpserver/handler"
	"github.com/yndnr/autosave-go/internal/telemetry/metric"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Engine  handler.Engine
	Board   *status.Board
	Storage handler.StorageHealth
	// Metrics serves /metrics and records request metrics. Optional.
	Metrics *metric.Registry
	Logger  *slog.Logger

	// RateLimit is the sustained requests per second per client on the
	// command endpoints. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// APIKeys are argon2id hashes of the accepted bearer tokens. Empty
	// leaves the API open. /health and /metrics never require a token.
	APIKeys []string

	// EnableAudit logs every request.
	EnableAudit bool
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Read-only endpoints skip the rate limiter so monitoring keeps working
// while a client floods the command endpoints.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := handler.New(cfg.Engine, cfg.Board, cfg.Storage, log)

	base := []Middleware{RequestID(), Recover(log)}
	if cfg.Metrics != nil {
		base = append(base, Metrics(cfg.Metrics))
	}
	if cfg.EnableAudit {
		base = append(base, Audit(log))
	}
	if len(cfg.APIKeys) > 0 {
		base = append(base, Auth(cfg.APIKeys, "/health", "/metrics"))
	}
	command := base
	if cfg.RateLimit > 0 {
		command = append(append([]Middleware(nil), base...), RateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}

	readHandler := Chain(h, base...)
	commandHandler := Chain(h, command...)

	mux := http.NewServeMux()

	mux.Handle("GET /health", readHandler)
	mux.Handle("GET /status", readHandler)
	mux.Handle("GET /sets/{name}", readHandler)
	mux.Handle("GET /sets/{name}/history", readHandler)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), RequestID(), Recover(log)))
	}

	mux.Handle("POST /sets", commandHandler)
	mux.Handle("DELETE /sets/{name}", commandHandler)
	mux.Handle("POST /sets/{name}/reload", commandHandler)
	mux.Handle("POST /sets/{name}/trigger", commandHandler)
	mux.Handle("POST /save", commandHandler)
	mux.Handle("POST /restore", commandHandler)

	return mux
}
