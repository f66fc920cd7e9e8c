package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pavelanni/questionai/internal/model"
)

// ExportResults returns results joined with their owner and question set.
// An empty email exports every user's results.
func (s *Store) ExportResults(ctx context.Context, email string) ([]model.ExportResult, error) {
	query := `SELECT ` + resultColumns + `, u.email, COALESCE(q.pdf_name, ''), COALESCE(q.language, '')
		FROM exam_results r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN question_sets q ON q.id = r.question_set_id`
	var args []any
	if email != "" {
		query += ` WHERE u.email = ?`
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	query += ` ORDER BY r.id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := []model.ExportResult{}
	for rows.Next() {
		var (
			owner, setName, lang sql.NullString
		)
		r, err := scanResult(rows, &owner, &setName, &lang)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ExportResult{
			OwnerEmail:  owner.String,
			SetName:     setName.String,
			SetLanguage: lang.String,
			ExamResult:  *r,
		})
	}
	return out, rows.Err()
}
