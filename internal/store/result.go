package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/questionai/internal/model"
)

// SaveResult inserts a finished exam result and returns its ID. Results are
// never updated afterwards. The set reference is stored as NULL when the
// user's set no longer exists, so an attempt outlives a deleted set.
func (s *Store) SaveResult(ctx context.Context, r model.ExamResult) (int64, error) {
	if r.MarksObtained > r.TotalMarks {
		return 0, fmt.Errorf("marks obtained %d exceed total %d", r.MarksObtained, r.TotalMarks)
	}
	answers := r.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	aj, err := json.Marshal(answers)
	if err != nil {
		return 0, fmt.Errorf("marshal answers: %w", err)
	}
	ej, err := json.Marshal(r.Evaluation)
	if err != nil {
		return 0, fmt.Errorf("marshal evaluation: %w", err)
	}
	if r.ExamDate.IsZero() {
		r.ExamDate = time.Now()
	}
	id, err := s.insert(ctx,
		`INSERT INTO exam_results (user_id, question_set_id, student_name, total_questions, total_marks,
		   marks_obtained, percentage, grade, time_taken, answers_json, evaluation_json, exam_date)
		 VALUES (?, (SELECT id FROM question_sets WHERE id = ? AND user_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.QuestionSetID, r.UserID, r.StudentName, r.TotalQuestions, r.TotalMarks,
		r.MarksObtained, r.Percentage, r.Grade, r.TimeTaken, string(aj), string(ej), r.ExamDate,
	)
	if err != nil {
		return 0, err
	}
	return id, nil
}

const resultColumns = `r.id, r.user_id, r.question_set_id, r.student_name, r.total_questions, r.total_marks,
	r.marks_obtained, r.percentage, r.grade, r.time_taken, r.answers_json, r.evaluation_json, r.exam_date`

func scanResult(sc interface{ Scan(...any) error }, extra ...any) (*model.ExamResult, error) {
	var (
		r      model.ExamResult
		setID  sql.NullInt64
		aj, ej string
	)
	dest := append([]any{
		&r.ID, &r.UserID, &setID, &r.StudentName, &r.TotalQuestions, &r.TotalMarks,
		&r.MarksObtained, &r.Percentage, &r.Grade, &r.TimeTaken, &aj, &ej, &r.ExamDate,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	if setID.Valid {
		id := setID.Int64
		r.QuestionSetID = &id
	}
	if err := json.Unmarshal([]byte(aj), &r.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(ej), &r.Evaluation); err != nil {
		return nil, fmt.Errorf("decode evaluation of result %d: %w", r.ID, err)
	}
	return &r, nil
}

// ListResults returns the user's results, newest first.
func (s *Store) ListResults(ctx context.Context, userID int64) ([]model.ExamResult, error) {
	rows, err := s.query(ctx,
		`SELECT `+resultColumns+` FROM exam_results r WHERE r.user_id = ? ORDER BY r.exam_date DESC, r.id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.ExamResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// GetResult returns one of the user's results.
func (s *Store) GetResult(ctx context.Context, userID, id int64) (*model.ExamResult, error) {
	r, err := scanResult(s.queryRow(ctx,
		`SELECT `+resultColumns+` FROM exam_results r WHERE r.id = ? AND r.user_id = ?`, id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// DashboardStats counts the user's question sets and results. Every set can be
// taken as an exam, so the exam count mirrors the set count.
func (s *Store) DashboardStats(ctx context.Context, userID int64) (model.DashboardStats, error) {
	var st model.DashboardStats
	sets, err := s.CountQuestionSets(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("count question sets: %w", err)
	}
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM exam_results WHERE user_id = ?`, userID).Scan(&st.Results); err != nil {
		return st, fmt.Errorf("count results: %w", err)
	}
	st.QuestionSets = sets
	st.Exams = sets
	return st, nil
}
