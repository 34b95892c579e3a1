package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/journal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// handleDefineSet handles POST /sets.
func (h *Handler) handleDefineSet(w http.ResponseWriter, r *http.Request) {
	var req DefineSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "name is required", nil)
		return
	}
	if req.Method == "" {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "method is required", nil)
		return
	}
	m, sched, err := req.schedule()
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	res, err := h.engine.Define(r.Context(), req.Name, m, sched, req.Macros)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, resultResponse(res))
}

// handleGetSet handles GET /sets/{name}.
func (h *Handler) handleGetSet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s, ok := h.board.Set(name)
	if !ok {
		h.handleServiceError(w, r, domain.ErrDefinitionNotFound.WithDetails(name), nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s)
}

// handleRemoveSet handles DELETE /sets/{name}.
func (h *Handler) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Remove(r.Context(), r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resultResponse(res))
}

// handleReloadSet handles POST /sets/{name}/reload. The body is optional;
// without a method the set keeps its current methods.
func (h *Handler) handleReloadSet(w http.ResponseWriter, r *http.Request) {
	var req DefineSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, sched, err := req.schedule()
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	res, err := h.engine.Reload(r.Context(), r.PathValue("name"), m, sched, req.Macros)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resultResponse(res))
}

// handleTriggerSet handles POST /sets/{name}/trigger. The save happens on
// the next scheduler cycle.
func (h *Handler) handleTriggerSet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.engine.Trigger(name); err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, map[string]string{"set": name, "pending": domain.MethodManual.String()})
}

// handleHistory handles GET /sets/{name}/history?limit=n.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.engine.History(r.Context(), name, limit)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	h.writeJSON(w, r, http.StatusOK, HistoryResponse{Set: name, Entries: entries})
}
