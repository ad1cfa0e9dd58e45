package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/store/storetest"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) grade.Store { return openMemory(t) })
}

func TestBulkInsert_AllOrNothing(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	// A trigger makes the second row of the batch fail inside the transaction.
	_, err := s.db.ExecContext(ctx, `
CREATE TRIGGER refuse_boom BEFORE INSERT ON students
WHEN NEW.student_id = 'BOOM'
BEGIN SELECT RAISE(ABORT, 'refused'); END;`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	batch := candidates(t, "S1", "BOOM", "S3")
	n, err := s.BulkInsert(ctx, batch)
	if err == nil {
		t.Fatal("BulkInsert() expected error")
	}
	if n != 0 {
		t.Errorf("BulkInsert() = %d, want 0 on failure", n)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after failed batch, want 0", count)
	}
}

func TestList_SameTimestampLaterRowFirst(t *testing.T) {
	s := openMemory(t)
	fixed := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if _, err := s.BulkInsert(context.Background(), candidates(t, "A", "B", "C")); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	recs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got string
	for _, r := range recs {
		got += r.StudentID()
		if !r.CreatedAt.Equal(fixed) {
			t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, fixed)
		}
	}
	if got != "CBA" {
		t.Errorf("order = %s, want CBA", got)
	}
}

func TestList_IgnoresStoredPercentage(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	if _, err := s.BulkInsert(ctx, candidates(t, "S1")); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE students SET percentage = 999`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if recs[0].Percentage() != 50 {
		t.Errorf("Percentage() = %v, want 50 derived from marks", recs[0].Percentage())
	}
}

func TestOpen_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.BulkInsert(ctx, candidates(t, "S1", "S2")); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	s.Close(ctx)

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close(ctx)

	n, err := reopened.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count() after reopen = %d, %v, want 2", n, err)
	}
}

func TestDSN(t *testing.T) {
	tests := []struct{ in, want string }{
		{":memory:", ":memory:"},
		{"grades.db", "grades.db?_busy_timeout=5000"},
		{"file:grades.db?mode=ro", "file:grades.db?mode=ro"},
	}
	for _, tt := range tests {
		if got := dsn(tt.in); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// candidates builds 10/5 grade candidates with the given student ids.
func candidates(t *testing.T, ids ...string) []grade.Candidate {
	t.Helper()
	out := make([]grade.Candidate, 0, len(ids))
	for _, id := range ids {
		name, total, obtained := "Student "+id, "10", "5"
		c, err := grade.NormalizeEdit("new", grade.EditInput{
			StudentID:     &id,
			StudentName:   &name,
			TotalMarks:    &total,
			MarksObtained: &obtained,
		})
		if err != nil {
			t.Fatalf("candidate %s: %v", id, err)
		}
		out = append(out, c)
	}
	return out
}
