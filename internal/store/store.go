package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// requesting user.
var ErrNotFound = errors.New("not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens (or creates) a SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), DriverSQLite, dbPath)
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "questionai.db"
		}
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/questionai?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// Each connection to ":memory:" is its own database, and SQLite has a
		// single writer anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites '?' placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS question_sets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	pdf_name TEXT NOT NULL,
	pdf_hash TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	questions_json TEXT NOT NULL,
	generation_date DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_question_sets_user ON question_sets(user_id, generation_date);

CREATE TABLE IF NOT EXISTS exam_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	question_set_id INTEGER REFERENCES question_sets(id) ON DELETE SET NULL,
	student_name TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	total_marks INTEGER NOT NULL,
	marks_obtained INTEGER NOT NULL,
	percentage REAL NOT NULL,
	grade TEXT NOT NULL,
	time_taken INTEGER NOT NULL,
	answers_json TEXT NOT NULL,
	evaluation_json TEXT NOT NULL,
	exam_date DATETIME NOT NULL,
	CHECK (marks_obtained <= total_marks)
);
CREATE INDEX IF NOT EXISTS idx_exam_results_user ON exam_results(user_id, exam_date);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS question_sets (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	pdf_name TEXT NOT NULL,
	pdf_hash TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	language TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	questions_json TEXT NOT NULL,
	generation_date TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_question_sets_user ON question_sets(user_id, generation_date);

CREATE TABLE IF NOT EXISTS exam_results (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	question_set_id BIGINT REFERENCES question_sets(id) ON DELETE SET NULL,
	student_name TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	total_marks INTEGER NOT NULL,
	marks_obtained INTEGER NOT NULL,
	percentage DOUBLE PRECISION NOT NULL,
	grade TEXT NOT NULL,
	time_taken INTEGER NOT NULL,
	answers_json TEXT NOT NULL,
	evaluation_json TEXT NOT NULL,
	exam_date TIMESTAMPTZ NOT NULL,
	CHECK (marks_obtained <= total_marks)
);
CREATE INDEX IF NOT EXISTS idx_exam_results_user ON exam_results(user_id, exam_date);
`
