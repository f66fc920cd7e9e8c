package model

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleMember is a regular account that owns question sets and results.
	UserRoleMember UserRole = "member"
	// UserRoleAdmin can manage other accounts.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents a cookie authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionKind tags the variant of a Question.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindShortAnswer    QuestionKind = "short-answer"
	KindLongAnswer     QuestionKind = "long-answer"
	KindCaseStudy      QuestionKind = "case-study"
)

// Question is one stored exam question. Which optional fields are populated
// depends on Kind; Validate enforces the per-kind shape.
type Question struct {
	Kind           QuestionKind `json:"kind"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"` // multiple-choice only
	Context        string       `json:"context,omitempty"` // case-study only
	ExpectedAnswer string       `json:"expected_answer"`
	Marks          int          `json:"marks"`
	Difficulty     Difficulty   `json:"difficulty"`
}

// Weight returns the question's marks, treating a missing value as 1.
func (q Question) Weight() int {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// Validate checks that the fields required by the question's kind are set and
// that fields belonging to other kinds are absent.
func (q Question) Validate() error {
	if q.Prompt == "" {
		return errors.New("prompt is required")
	}
	if q.ExpectedAnswer == "" {
		return errors.New("expected answer is required")
	}
	if q.Marks < 0 {
		return fmt.Errorf("marks must not be negative, got %d", q.Marks)
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", q.Difficulty)
	}

	switch q.Kind {
	case KindMultipleChoice:
		if len(q.Options) < 2 {
			return errors.New("multiple-choice question needs at least two options")
		}
		if !slices.Contains(q.Options, q.ExpectedAnswer) {
			return errors.New("expected answer must be one of the options")
		}
	case KindShortAnswer, KindLongAnswer, KindCaseStudy:
		if len(q.Options) > 0 {
			return fmt.Errorf("%s question must not have options", q.Kind)
		}
	default:
		return fmt.Errorf("unknown question kind %q", q.Kind)
	}

	if q.Kind == KindCaseStudy && q.Context == "" {
		return errors.New("case-study question needs a context")
	}
	if q.Kind != KindCaseStudy && q.Context != "" {
		return fmt.Errorf("%s question must not have a context", q.Kind)
	}
	return nil
}

// Public returns a copy of the question with the expected answer removed, for
// serving to exam takers.
func (q Question) Public() Question {
	q.ExpectedAnswer = ""
	q.Options = slices.Clone(q.Options)
	return q
}

// QuestionSet is an immutable, ordered collection of questions owned by one user.
type QuestionSet struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	PDFName        string     `json:"pdf_name"`
	PDFHash        string     `json:"pdf_hash"`
	FileSize       int64      `json:"file_size"`
	Language       string     `json:"language"`
	Difficulty     Difficulty `json:"difficulty"`
	TotalQuestions int        `json:"total_questions"`
	Questions      []Question `json:"questions,omitempty"`
	GeneratedAt    time.Time  `json:"generation_date"`
}

// QuestionSetSummary is the library listing row for a set.
type QuestionSetSummary struct {
	ID             int64      `json:"id"`
	PDFName        string     `json:"pdf_name"`
	TotalQuestions int        `json:"total_questions"`
	Difficulty     Difficulty `json:"difficulty"`
	Language       string     `json:"language"`
	GeneratedAt    time.Time  `json:"generation_date"`
}

// QuestionOutcome records how a single question was graded.
type QuestionOutcome struct {
	Index   int  `json:"index"`
	Marks   int  `json:"marks"`
	Correct bool `json:"correct"`
}

// ExamResult is the write-once outcome of a submitted exam attempt.
type ExamResult struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	QuestionSetID  *int64            `json:"question_set_id,omitempty"`
	StudentName    string            `json:"student_name"`
	TotalQuestions int               `json:"total_questions"`
	TotalMarks     int               `json:"total_marks"`
	MarksObtained  int               `json:"marks_obtained"`
	Percentage     float64           `json:"percentage"`
	Grade          string            `json:"grade"`
	TimeTaken      int               `json:"time_taken"`
	Answers        map[int]string    `json:"answers"`
	Evaluation     []QuestionOutcome `json:"evaluation"`
	ExamDate       time.Time         `json:"exam_date"`
}

// DashboardStats holds per-user counters shown on the dashboard.
type DashboardStats struct {
	QuestionSets int `json:"questions"`
	Exams        int `json:"exams"`
	Results      int `json:"results"`
}

// Config holds runtime service parameters set via CLI flags.
type Config struct {
	ExamBudget       time.Duration // countdown per attempt
	SubmitTimeout    time.Duration // bound on a timer-forced persistence call
	SessionRetention time.Duration // how long finished attempts stay in memory
	MaxUploadBytes   int64
	SecureCookies    bool
	JWTSecret        string
	CORSOrigins      []string
}
