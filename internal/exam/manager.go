package exam

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/questionai/internal/model"
)

// ErrAttemptNotFound is returned when no live session has the requested ID.
var ErrAttemptNotFound = errors.New("attempt not found")

const defaultSubmitTimeout = 10 * time.Second

// ManagerConfig holds the parameters applied to every session a Manager creates.
type ManagerConfig struct {
	Budget        time.Duration // countdown per attempt; DefaultBudget seconds when zero
	SubmitTimeout time.Duration // bound on a timeout-forced save
	Clock         Clock         // SystemClock when nil
}

// Manager keeps the live exam sessions of the process, keyed by attempt ID.
type Manager struct {
	saver ResultSaver
	cfg   ManagerConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager whose sessions persist results through saver.
func NewManager(saver ResultSaver, cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	return &Manager{
		saver:    saver,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for a not-yet-started attempt over questions.
func (m *Manager) Create(sc SessionContext, questions []model.Question) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate attempt id: %w", err)
	}
	a := NewAttempt(sc, questions, int(m.cfg.Budget/time.Second), m.saver)
	s := newSession(id.String(), a, m.cfg.Clock, m.cfg.SubmitTimeout)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	slog.Debug("created attempt", "attempt_id", s.id, "user_id", sc.UserID, "question_set_id", sc.QuestionSetID)
	return s, nil
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return s, nil
}

// Abandon discards a session without saving anything.
func (m *Manager) Abandon(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrAttemptNotFound
	}
	s.Close()
	slog.Info("abandoned attempt", "attempt_id", id)
	return nil
}

// Prune closes submitted and never-started sessions that have been idle
// longer than retention. Sessions in progress or holding a result that failed
// to save are kept. It returns the number of sessions removed.
func (m *Manager) Prune(retention time.Duration) int {
	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	now := m.cfg.Clock.Now()
	removed := 0
	for _, s := range candidates {
		st, at, err := s.idleSince()
		if err == nil && (st == StatusInProgress || st == StatusSubmitFailed || now.Sub(at) <= retention) {
			continue
		}
		m.mu.Lock()
		delete(m.sessions, s.id)
		m.mu.Unlock()
		s.Close()
		removed++
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close discards every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
