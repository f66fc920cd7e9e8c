package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/questionai/internal/generate"
	appI18n "github.com/pavelanni/questionai/internal/i18n"
	"github.com/pavelanni/questionai/internal/model"
	"github.com/pavelanni/questionai/internal/store"
)

type createQuestionSetResponse struct {
	Success        bool   `json:"success"`
	TotalQuestions int    `json:"totalQuestions"`
	QuestionSetID  int64  `json:"questionSetId"`
	Message        string `json:"message"`
}

func (h *Handler) handleCreateQuestionSet(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	if r.ContentLength > h.config.MaxUploadBytes {
		h.tooLarge(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(w, r)
			return
		}
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrNoFile")
		return
	}
	defer file.Close()

	types, err := generate.ParseTypes(r.FormValue("questionTypes"))
	if err != nil {
		if errors.Is(err, generate.ErrNoQuestionTypes) {
			h.fail(w, r, err)
			return
		}
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}

	difficulty := model.Difficulty(r.FormValue("difficulty"))
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	if !difficulty.Valid() {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidDifficulty")
		return
	}
	lang := appI18n.Match(r.FormValue("language"))

	doc, err := generate.Inspect(header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	questions, err := h.gen.Generate(r.Context(), doc, generate.Request{
		Types:      types,
		Difficulty: difficulty,
		Language:   lang,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.store.CreateQuestionSet(r.Context(), model.QuestionSet{
		UserID:     user.ID,
		PDFName:    doc.Name,
		PDFHash:    doc.Hash,
		FileSize:   doc.Size,
		Language:   lang,
		Difficulty: difficulty,
		Questions:  questions,
	})
	if err != nil {
		h.internalError(w, r, "failed to save question set", err)
		return
	}

	slog.Info("generated question set", "id", id, "user_id", user.ID, "pdf", doc.Name,
		"questions", len(questions), "difficulty", difficulty, "language", lang)
	writeJSON(w, http.StatusOK, createQuestionSetResponse{
		Success:        true,
		TotalQuestions: len(questions),
		QuestionSetID:  id,
		Message:        appI18n.T(r.Context(), "DemoGenerated") + ". " + appI18n.Tp(r.Context(), "QuestionsGenerated", len(questions)),
	})
}

func (h *Handler) tooLarge(w http.ResponseWriter, r *http.Request) {
	msg := appI18n.Td(r.Context(), "ErrFileTooLarge", map[string]any{"MaxMB": h.config.MaxUploadBytes >> 20})
	writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: msg})
}

func (h *Handler) handleListQuestionSets(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sets, err := h.store.ListQuestionSets(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, "failed to list question sets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionSets": sets})
}

func (h *Handler) handleGetQuestionSet(w http.ResponseWriter, r *http.Request) {
	set, ok := h.questionSet(w, r)
	if !ok {
		return
	}
	for i, q := range set.Questions {
		set.Questions[i] = q.Public()
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) handleDeleteQuestionSet(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	id, ok := idParam(w, r, "setID", "ErrQuestionSetNotFound")
	if !ok {
		return
	}
	if err := h.store.DeleteQuestionSet(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "ErrQuestionSetNotFound")
			return
		}
		h.internalError(w, r, "failed to delete question set", err)
		return
	}
	slog.Info("deleted question set", "id", id, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// questionSet loads the set named by the URL for the current user.
func (h *Handler) questionSet(w http.ResponseWriter, r *http.Request) (*model.QuestionSet, bool) {
	user := model.UserFromContext(r.Context())
	id, ok := idParam(w, r, "setID", "ErrQuestionSetNotFound")
	if !ok {
		return nil, false
	}
	set, err := h.store.GetQuestionSet(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrQuestionSetNotFound")
		return nil, false
	}
	if err != nil {
		h.internalError(w, r, "failed to get question set", err)
		return nil, false
	}
	return set, true
}
