package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/questionai/internal/model"
	"github.com/pavelanni/questionai/internal/store"
)

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "userID", "ErrUserNotFound")
	if !ok {
		return
	}
	if self := model.UserFromContext(r.Context()); self.ID == id {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}

	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "ErrUserNotFound")
			return
		}
		h.internalError(w, r, "failed to toggle user active", err)
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		h.internalError(w, r, "failed to reload user", err)
		return
	}
	slog.Info("toggled user", "id", id, "active", user.Active)
	writeJSON(w, http.StatusOK, user)
}
