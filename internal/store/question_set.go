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

// CreateQuestionSet stores a new question set. The question count is derived
// from the stored questions, and every question must be valid for its kind.
func (s *Store) CreateQuestionSet(ctx context.Context, qs model.QuestionSet) (int64, error) {
	for i, q := range qs.Questions {
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("question %d: %w", i, err)
		}
	}
	qj, err := json.Marshal(qs.Questions)
	if err != nil {
		return 0, fmt.Errorf("marshal questions: %w", err)
	}
	if qs.GeneratedAt.IsZero() {
		qs.GeneratedAt = time.Now()
	}
	return s.insert(ctx,
		`INSERT INTO question_sets (user_id, pdf_name, pdf_hash, file_size, language, difficulty, total_questions, questions_json, generation_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		qs.UserID, qs.PDFName, qs.PDFHash, qs.FileSize, qs.Language, qs.Difficulty, len(qs.Questions), string(qj), qs.GeneratedAt,
	)
}

// GetQuestionSet returns the user's question set with its questions.
func (s *Store) GetQuestionSet(ctx context.Context, userID, id int64) (*model.QuestionSet, error) {
	var (
		qs    model.QuestionSet
		qjson string
	)
	err := s.queryRow(ctx,
		`SELECT id, user_id, pdf_name, pdf_hash, file_size, language, difficulty, total_questions, questions_json, generation_date
		 FROM question_sets WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&qs.ID, &qs.UserID, &qs.PDFName, &qs.PDFHash, &qs.FileSize, &qs.Language, &qs.Difficulty,
		&qs.TotalQuestions, &qjson, &qs.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(qjson), &qs.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of set %d: %w", id, err)
	}
	return &qs, nil
}

// ListQuestionSets returns summaries of the user's sets, newest first.
func (s *Store) ListQuestionSets(ctx context.Context, userID int64) ([]model.QuestionSetSummary, error) {
	rows, err := s.query(ctx,
		`SELECT id, pdf_name, total_questions, difficulty, language, generation_date
		 FROM question_sets WHERE user_id = ? ORDER BY generation_date DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sets := []model.QuestionSetSummary{}
	for rows.Next() {
		var qs model.QuestionSetSummary
		if err := rows.Scan(&qs.ID, &qs.PDFName, &qs.TotalQuestions, &qs.Difficulty, &qs.Language, &qs.GeneratedAt); err != nil {
			return nil, err
		}
		sets = append(sets, qs)
	}
	return sets, rows.Err()
}

// DeleteQuestionSet removes one of the user's sets. Results taken on the set
// are kept with their set reference cleared.
func (s *Store) DeleteQuestionSet(ctx context.Context, userID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE exam_results SET question_set_id = NULL WHERE question_set_id = ? AND user_id = ?`), id, userID,
	); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM question_sets WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// CountQuestionSets returns how many sets the user owns.
func (s *Store) CountQuestionSets(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM question_sets WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}
