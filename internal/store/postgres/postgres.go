// Package postgres stores grade records in PostgreSQL using a pgx
// connection pool. Bulk inserts use the COPY protocol inside a transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/grade"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id             UUID PRIMARY KEY,
	seq            BIGINT GENERATED BY DEFAULT AS IDENTITY,
	student_id     TEXT NOT NULL,
	student_name   TEXT NOT NULL,
	total_marks    DOUBLE PRECISION NOT NULL,
	marks_obtained DOUBLE PRECISION NOT NULL,
	percentage     DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS students_created_at_idx ON students (created_at DESC, seq DESC);
`

// copyColumns is the COPY column order; seq is assigned by the identity.
var copyColumns = []string{
	"id", "student_id", "student_name", "total_marks", "marks_obtained", "percentage", "created_at",
}

// Store is a grade.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects a pool configured from cfg, verifies it and ensures the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := New(connectCtx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool and ensures the schema. The pool is owned by
// the Store afterwards and released by Close.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases every pooled connection.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) List(ctx context.Context) ([]grade.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, student_name, total_marks, marks_obtained, created_at
		FROM students
		ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (grade.Record, error) {
		var (
			id              pgtype.UUID
			studentID, name string
			total, obtained float64
			created         time.Time
		)
		if err := row.Scan(&id, &studentID, &name, &total, &obtained, &created); err != nil {
			return grade.Record{}, err
		}
		return grade.Record{
			ID:        uuidToString(id),
			CreatedAt: created.UTC(),
			Candidate: grade.Restore(studentID, name, total, obtained),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan students: %w", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// BulkInsert copies every candidate in a single COPY inside a transaction;
// any failure rolls the whole batch back.
func (s *Store) BulkInsert(ctx context.Context, candidates []grade.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	created := s.now().UTC().Truncate(time.Microsecond)
	rows := make([][]any, len(candidates))
	for i, c := range candidates {
		rows[i] = []any{
			pgtype.UUID{Bytes: uuid.New(), Valid: true},
			c.StudentID(),
			c.StudentName(),
			c.TotalMarks(),
			c.MarksObtained(),
			c.Percentage(),
			created,
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"students"}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy students: %w", err)
	}
	if int(n) != len(candidates) {
		return 0, fmt.Errorf("copy students: wrote %d of %d rows", n, len(candidates))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

func (s *Store) Update(ctx context.Context, id string, c grade.Candidate) (grade.Record, error) {
	pgID, ok := toPgUUID(id)
	if !ok {
		return grade.Record{}, fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}

	var created time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE students
		SET student_id = $2, student_name = $3, total_marks = $4, marks_obtained = $5, percentage = $6
		WHERE id = $1
		RETURNING created_at`,
		pgID, c.StudentID(), c.StudentName(), c.TotalMarks(), c.MarksObtained(), c.Percentage(),
	).Scan(&created)
	if errors.Is(err, pgx.ErrNoRows) {
		return grade.Record{}, fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	if err != nil {
		return grade.Record{}, fmt.Errorf("update student %s: %w", id, err)
	}

	return grade.Record{ID: uuidToString(pgID), CreatedAt: created.UTC(), Candidate: c}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pgID, ok := toPgUUID(id)
	if !ok {
		return fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	return nil
}

// toPgUUID parses a record id. Ids that are not UUIDs cannot exist in the table.
func toPgUUID(s string) (pgtype.UUID, bool) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, true
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
