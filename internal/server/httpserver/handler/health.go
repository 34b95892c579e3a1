package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

// handleHealth handles GET /health. It answers 503 while storage is
// unhealthy.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Heartbeat: h.board.Report().Global.Heartbeat,
		Time:      time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if h.storage != nil {
		snap := h.storage.Snapshot()
		resp.Storage = &snap
		if !snap.Healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, r, code, resp)
}

// handleStatus handles GET /status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep := h.board.Report()
	if rep.Sets == nil {
		rep.Sets = []status.Set{}
	}
	h.writeJSON(w, r, http.StatusOK, StatusResponse{Global: rep.Global, Sets: rep.Sets})
}
