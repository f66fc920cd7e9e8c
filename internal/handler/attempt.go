package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/questionai/internal/exam"
	appI18n "github.com/pavelanni/questionai/internal/i18n"
	"github.com/pavelanni/questionai/internal/model"
)

type attemptResponse struct {
	AttemptID string `json:"attemptId"`
	exam.Snapshot
}

type submitFailedResponse struct {
	Error   string          `json:"error"`
	Attempt attemptResponse `json:"attempt"`
}

func (h *Handler) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	set, ok := h.questionSet(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	sess, err := h.exams.Create(exam.SessionContext{UserID: user.ID, QuestionSetID: set.ID}, set.Questions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("created attempt", "attempt", sess.ID(), "user_id", user.ID, "question_set", set.ID)
	h.writeSnapshot(w, r, http.StatusCreated, sess)
}

// attempt returns the live attempt named by the URL. Attempts owned by other
// users are reported as missing.
func (h *Handler) attempt(w http.ResponseWriter, r *http.Request) (*exam.Session, bool) {
	user := model.UserFromContext(r.Context())
	sess, err := h.exams.Get(chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if sess.Context().UserID != user.ID {
		writeError(w, r, http.StatusNotFound, "ErrAttemptNotFound")
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, sess *exam.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, attemptResponse{AttemptID: sess.ID(), Snapshot: snap})
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, sess)
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	var req struct {
		StudentName string `json:"studentName"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.Start(req.StudentName); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, sess)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := sess.Navigate(req.Index); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, sess)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	var req struct {
		Answer string `json:"answer"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.Answer(req.Answer); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, sess)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	result, err := sess.Submit(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, exam.ErrNotInProgress), errors.Is(err, exam.ErrSessionClosed):
		h.fail(w, r, err)
	default:
		// The attempt is graded but not stored; the client may retry.
		slog.Error("failed to persist exam result", "attempt", sess.ID(), "error", err)
		snap, serr := sess.Snapshot()
		if serr != nil {
			h.fail(w, r, serr)
			return
		}
		writeJSON(w, http.StatusBadGateway, submitFailedResponse{
			Error:   appI18n.T(r.Context(), "ErrSubmitFailed"),
			Attempt: attemptResponse{AttemptID: sess.ID(), Snapshot: snap},
		})
	}
}

func (h *Handler) handleAbandonAttempt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.attempt(w, r)
	if !ok {
		return
	}
	if err := h.exams.Abandon(sess.ID()); err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("abandoned attempt", "attempt", sess.ID())
	w.WriteHeader(http.StatusNoContent)
}
