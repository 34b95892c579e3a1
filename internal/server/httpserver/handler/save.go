package handler

import (
	"net/http"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// handleSave handles POST /save. It returns once the file is written.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "name is required", nil)
		return
	}

	res, err := h.engine.ManualSave(r.Context(), req.Name, req.File)
	if err != nil {
		h.handleServiceError(w, r, err, resultDetails(res))
		return
	}
	h.writeJSON(w, r, http.StatusOK, resultResponse(res))
}

// handleRestore handles POST /restore.
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.File == "" {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "file is required", nil)
		return
	}
	from, err := domain.ParseRestoreFrom(req.From)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	res, err := h.engine.ManualRestore(r.Context(), req.File, from, req.Macros)
	if err != nil {
		h.handleServiceError(w, r, err, resultDetails(res))
		return
	}
	h.writeJSON(w, r, http.StatusOK, resultResponse(res))
}

// resultDetails returns the result of a failed command for the error
// envelope, or nil when the command never ran.
func resultDetails(res domain.Result) any {
	if res.File == "" && res.Message == "" {
		return nil
	}
	return resultResponse(res)
}
