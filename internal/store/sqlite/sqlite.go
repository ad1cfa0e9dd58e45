// Package sqlite stores grade records in a SQLite database through
// github.com/mattn/go-sqlite3. It suits single-node deployments, the CLI
// and tests (":memory:").
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/gradebook/internal/grade"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id             TEXT PRIMARY KEY,
	student_id     TEXT NOT NULL,
	student_name   TEXT NOT NULL,
	total_marks    REAL NOT NULL,
	marks_obtained REAL NOT NULL,
	percentage     REAL NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS students_created_at_idx ON students (created_at DESC);
`

const (
	insertSQL = `INSERT INTO students
	(id, student_id, student_name, total_marks, marks_obtained, percentage, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	listSQL = `SELECT id, student_id, student_name, total_marks, marks_obtained, created_at
	FROM students ORDER BY created_at DESC, rowid DESC`

	updateSQL = `UPDATE students
	SET student_id = ?, student_name = ?, total_marks = ?, marks_obtained = ?, percentage = ?
	WHERE id = ?
	RETURNING created_at`
)

// Store is a grade.Store backed by SQLite. created_at holds Unix
// microseconds; rowid breaks ties between rows of one batch.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema. The pool is limited to one connection: SQLite serializes writers
// anyway and ":memory:" databases exist per connection.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// dsn adds a busy timeout to file databases so concurrent processes wait
// for the write lock instead of failing at once.
func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// Close releases the database handle.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) ([]grade.Record, error) {
	rows, err := s.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var records []grade.Record
	for rows.Next() {
		var (
			id, studentID, name string
			total, obtained     float64
			created             int64
		)
		if err := rows.Scan(&id, &studentID, &name, &total, &obtained, &created); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		records = append(records, grade.Record{
			ID:        id,
			CreatedAt: time.UnixMicro(created).UTC(),
			Candidate: grade.Restore(studentID, name, total, obtained),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// BulkInsert writes every candidate in one transaction; on any error the
// transaction is rolled back and nothing is stored.
func (s *Store) BulkInsert(ctx context.Context, candidates []grade.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := s.now().UnixMicro()
	for i, c := range candidates {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			c.StudentID(),
			c.StudentName(),
			c.TotalMarks(),
			c.MarksObtained(),
			c.Percentage(),
			created,
		)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(candidates), nil
}

func (s *Store) Update(ctx context.Context, id string, c grade.Candidate) (grade.Record, error) {
	var created int64
	err := s.db.QueryRowContext(ctx, updateSQL,
		c.StudentID(),
		c.StudentName(),
		c.TotalMarks(),
		c.MarksObtained(),
		c.Percentage(),
		id,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return grade.Record{}, fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	if err != nil {
		return grade.Record{}, fmt.Errorf("update student %s: %w", id, err)
	}

	return grade.Record{
		ID:        id,
		CreatedAt: time.UnixMicro(created).UTC(),
		Candidate: c,
	}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	return nil
}
