package handler

import (
	"errors"
	"net/http"

	"github.com/pavelanni/questionai/internal/model"
	"github.com/pavelanni/questionai/internal/store"
)

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	results, err := h.store.ListResults(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, "failed to list results", err)
		return
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	id, ok := idParam(w, r, "resultID", "ErrResultNotFound")
	if !ok {
		return
	}
	result, err := h.store.GetResult(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrResultNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to get result", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
