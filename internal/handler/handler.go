package handler

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/questionai/internal/exam"
	"github.com/pavelanni/questionai/internal/generate"
	appI18n "github.com/pavelanni/questionai/internal/i18n"
	"github.com/pavelanni/questionai/internal/model"
	"github.com/pavelanni/questionai/internal/store"
)

const defaultMaxUpload = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	exams  *exam.Manager
	gen    generate.Generator
	tokens *tokenIssuer
	config model.Config
}

// New creates a new Handler.
func New(s *store.Store, exams *exam.Manager, cfg model.Config) (*Handler, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		slog.Warn("no jwt-secret configured, bearer tokens will not survive a restart")
	}
	return &Handler{
		store:  s,
		exams:  exams,
		gen:    generate.Demo{},
		tokens: newTokenIssuer(secret, tokenTTL),
		config: cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.csrfMiddleware)

		r.Get("/dashboard", h.handleDashboard)

		r.Route("/question-sets", func(r chi.Router) {
			r.Get("/", h.handleListQuestionSets)
			r.Post("/", h.handleCreateQuestionSet)
			r.Get("/{setID}", h.handleGetQuestionSet)
			r.Delete("/{setID}", h.handleDeleteQuestionSet)
			r.Post("/{setID}/attempts", h.handleCreateAttempt)
		})

		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", h.handleGetAttempt)
			r.Delete("/", h.handleAbandonAttempt)
			r.Post("/start", h.handleStartAttempt)
			r.Post("/navigate", h.handleNavigate)
			r.Post("/answer", h.handleAnswer)
			r.Post("/submit", h.handleSubmit)
		})

		r.Get("/results", h.handleListResults)
		r.Get("/results/{resultID}", h.handleGetResult)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleAdminUsers)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stats, err := h.store.DashboardStats(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, "failed to load dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError responds with a localized error message.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID)})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "ErrInternal")
}

// fail maps a domain error to a status and message. Unknown errors are 500s.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exam.ErrAttemptNotFound), errors.Is(err, exam.ErrSessionClosed):
		writeError(w, r, http.StatusNotFound, "ErrAttemptNotFound")
	case errors.Is(err, exam.ErrEmptyName):
		writeError(w, r, http.StatusBadRequest, "ErrEmptyName")
	case errors.Is(err, exam.ErrAlreadyStarted):
		writeError(w, r, http.StatusConflict, "ErrAlreadyStarted")
	case errors.Is(err, exam.ErrNotInProgress):
		writeError(w, r, http.StatusConflict, "ErrNotInProgress")
	case errors.Is(err, exam.ErrNoQuestions):
		writeError(w, r, http.StatusBadRequest, "ErrNoQuestions")
	case errors.Is(err, generate.ErrNoQuestionTypes):
		writeError(w, r, http.StatusBadRequest, "ErrNoQuestionTypes")
	case errors.Is(err, generate.ErrInvalidDifficulty):
		writeError(w, r, http.StatusBadRequest, "ErrInvalidDifficulty")
	case errors.Is(err, generate.ErrNotPDF):
		writeError(w, r, http.StatusBadRequest, "ErrNotPDF")
	default:
		h.internalError(w, r, "request failed", err)
	}
}

// decodeJSON reads a JSON request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Debug("bad request body", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return false
	}
	return true
}

// idParam parses a numeric URL parameter, answering 404 when it is malformed.
func idParam(w http.ResponseWriter, r *http.Request, name, notFoundMsg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, notFoundMsg)
		return 0, false
	}
	return id, true
}
