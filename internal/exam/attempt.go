package exam

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/pavelanni/questionai/internal/model"
)

// DefaultBudget is the countdown, in seconds, given to every attempt.
const DefaultBudget = 3600

// Status represents the lifecycle state of an exam attempt.
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusInProgress   Status = "in_progress"
	StatusSubmitFailed Status = "submit_failed"
	StatusSubmitted    Status = "submitted"
)

var (
	ErrEmptyName      = errors.New("student name is required")
	ErrAlreadyStarted = errors.New("attempt already started")
	ErrNotInProgress  = errors.New("attempt is not in progress")
	ErrNoQuestions    = errors.New("question set has no questions")
)

// SessionContext identifies who is taking an attempt and on which question set.
type SessionContext struct {
	UserID        int64
	QuestionSetID int64
}

// ResultSaver persists a finished exam result and returns its ID.
type ResultSaver interface {
	SaveResult(ctx context.Context, r model.ExamResult) (int64, error)
}

// Attempt is the state machine for one pass through a question set. It is not
// safe for concurrent use; Session serializes access to it.
type Attempt struct {
	sc        SessionContext
	questions []model.Question
	saver     ResultSaver
	budget    int
	now       func() time.Time

	status      Status
	studentName string
	current     int
	answers     map[int]string
	remaining   int
	result      *model.ExamResult
}

// NewAttempt creates a not-started attempt over questions. A non-positive
// budget falls back to DefaultBudget.
func NewAttempt(sc SessionContext, questions []model.Question, budgetSeconds int, saver ResultSaver) *Attempt {
	if budgetSeconds <= 0 {
		budgetSeconds = DefaultBudget
	}
	return &Attempt{
		sc:        sc,
		questions: questions,
		saver:     saver,
		budget:    budgetSeconds,
		now:       time.Now,
		status:    StatusNotStarted,
		answers:   make(map[int]string),
		remaining: budgetSeconds,
	}
}

// Status returns the current lifecycle state.
func (a *Attempt) Status() Status { return a.status }

// Start records the taker's name and begins the countdown.
func (a *Attempt) Start(studentName string) error {
	if a.status != StatusNotStarted {
		return ErrAlreadyStarted
	}
	name := strings.TrimSpace(studentName)
	if name == "" {
		return ErrEmptyName
	}
	a.studentName = name
	a.status = StatusInProgress
	return nil
}

// Navigate moves to index, clamped to the valid range, and returns the index
// actually selected.
func (a *Attempt) Navigate(index int) (int, error) {
	if a.status != StatusInProgress {
		return a.current, ErrNotInProgress
	}
	last := len(a.questions) - 1
	switch {
	case last < 0:
		index = 0
	case index < 0:
		index = 0
	case index > last:
		index = last
	}
	a.current = index
	return index, nil
}

// Answer records text as the answer to the current question, replacing any
// earlier answer.
func (a *Attempt) Answer(text string) error {
	if a.status != StatusInProgress {
		return ErrNotInProgress
	}
	if len(a.questions) == 0 {
		return ErrNoQuestions
	}
	a.answers[a.current] = text
	return nil
}

// Tick advances the countdown by one second. When it reaches zero the attempt
// is submitted with whatever answers are recorded.
func (a *Attempt) Tick(ctx context.Context) error {
	if a.status != StatusInProgress {
		return nil
	}
	if a.remaining > 0 {
		a.remaining--
	}
	if a.remaining > 0 {
		return nil
	}
	_, err := a.Submit(ctx)
	return err
}

// Submit grades the attempt and hands the result to the saver. The attempt
// becomes Submitted only after the save succeeds; on failure it moves to
// SubmitFailed and a later Submit retries the same result without regrading.
// Submitting a submitted attempt returns the stored result and does nothing.
func (a *Attempt) Submit(ctx context.Context) (*model.ExamResult, error) {
	switch a.status {
	case StatusSubmitted:
		r := *a.result
		return &r, nil
	case StatusNotStarted:
		return nil, ErrNotInProgress
	case StatusInProgress:
		a.result = a.grade()
	}

	id, err := a.saver.SaveResult(ctx, *a.result)
	if err != nil {
		a.status = StatusSubmitFailed
		return nil, fmt.Errorf("save result: %w", err)
	}
	a.result.ID = id
	a.status = StatusSubmitted
	r := *a.result
	return &r, nil
}

func (a *Attempt) grade() *model.ExamResult {
	sc := Evaluate(a.questions, a.answers)
	setID := a.sc.QuestionSetID
	return &model.ExamResult{
		UserID:         a.sc.UserID,
		QuestionSetID:  &setID,
		StudentName:    a.studentName,
		TotalQuestions: len(a.questions),
		TotalMarks:     sc.TotalMarks,
		MarksObtained:  sc.MarksObtained,
		Percentage:     sc.Percentage,
		Grade:          sc.Grade,
		TimeTaken:      a.budget - a.remaining,
		Answers:        maps.Clone(a.answers),
		Evaluation:     sc.Outcomes,
		ExamDate:       a.now(),
	}
}

// Snapshot is a read-only view of an attempt for presentation.
type Snapshot struct {
	Status        Status            `json:"status"`
	StudentName   string            `json:"student_name,omitempty"`
	CurrentIndex  int               `json:"current_index"`
	QuestionCount int               `json:"question_count"`
	Question      *model.Question   `json:"question,omitempty"`
	TimeRemaining int               `json:"time_remaining"`
	Answers       map[int]string    `json:"answers"`
	Result        *model.ExamResult `json:"result,omitempty"`
}

// Snapshot returns the attempt's current state. The current question is only
// included while the attempt is in progress and never carries its answer.
func (a *Attempt) Snapshot() Snapshot {
	s := Snapshot{
		Status:        a.status,
		StudentName:   a.studentName,
		CurrentIndex:  a.current,
		QuestionCount: len(a.questions),
		TimeRemaining: a.remaining,
		Answers:       maps.Clone(a.answers),
	}
	if a.status == StatusInProgress && a.current < len(a.questions) {
		q := a.questions[a.current].Public()
		s.Question = &q
	}
	if a.status == StatusSubmitted {
		r := *a.result
		s.Result = &r
	}
	return s
}
