// Package storetest is a conformance suite run against every grade.Store
// engine, so all engines honor the same ordering, identity and not-found
// rules.
package storetest

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/grade"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) grade.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s grade.Store)
	}{
		{"EmptyList", testEmptyList},
		{"EmptyBatchIsNoop", testEmptyBatch},
		{"InsertAndListNewestFirst", testInsertAndList},
		{"DuplicatesKept", testDuplicatesKept},
		{"UpdateReplacesFields", testUpdate},
		{"UpdateNotFound", testUpdateNotFound},
		{"DeleteRemoves", testDelete},
		{"DeleteNotFound", testDeleteNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// candidates builds valid candidates through the normalizer's edit path.
func candidates(t *testing.T, specs ...[4]string) []grade.Candidate {
	t.Helper()
	out := make([]grade.Candidate, 0, len(specs))
	for _, s := range specs {
		c, err := grade.NormalizeEdit("seed", grade.EditInput{
			StudentID:     &s[0],
			StudentName:   &s[1],
			TotalMarks:    &s[2],
			MarksObtained: &s[3],
		})
		if err != nil {
			t.Fatalf("build candidate %v: %v", s, err)
		}
		out = append(out, c)
	}
	return out
}

func mustList(t *testing.T, s grade.Store) []grade.Record {
	t.Helper()
	recs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return recs
}

func studentIDs(recs []grade.Record) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.StudentID()
	}
	return ids
}

func testEmptyList(t *testing.T, s grade.Store) {
	if recs := mustList(t, s); len(recs) != 0 {
		t.Errorf("List() = %d records, want 0", len(recs))
	}
	n, err := s.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Count() = %d, %v, want 0", n, err)
	}
}

func testEmptyBatch(t *testing.T, s grade.Store) {
	n, err := s.BulkInsert(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("BulkInsert(nil) = %d, %v, want 0, nil", n, err)
	}
}

func testInsertAndList(t *testing.T, s grade.Store) {
	ctx := context.Background()

	n, err := s.BulkInsert(ctx, candidates(t,
		[4]string{"S1", "Ann", "50", "45"},
		[4]string{"S2", "Bob", "80", "60"},
	))
	if err != nil || n != 2 {
		t.Fatalf("BulkInsert() = %d, %v, want 2", n, err)
	}
	if _, err := s.BulkInsert(ctx, candidates(t, [4]string{"S3", "Cy", "10", "10"})); err != nil {
		t.Fatalf("second BulkInsert() error = %v", err)
	}

	recs := mustList(t, s)
	if got, want := studentIDs(recs), []string{"S3", "S2", "S1"}; !slices.Equal(got, want) {
		t.Fatalf("List() order = %v, want %v", got, want)
	}

	seen := map[string]bool{}
	for _, r := range recs {
		if r.ID == "" || seen[r.ID] {
			t.Errorf("record id %q empty or repeated", r.ID)
		}
		seen[r.ID] = true
		if r.CreatedAt.IsZero() {
			t.Errorf("record %s has no CreatedAt", r.ID)
		}
	}

	s1 := recs[2]
	if s1.StudentName() != "Ann" || s1.TotalMarks() != 50 || s1.MarksObtained() != 45 {
		t.Errorf("S1 fields = %q %v %v", s1.StudentName(), s1.TotalMarks(), s1.MarksObtained())
	}
	if math.Abs(s1.Percentage()-90) > 1e-9 {
		t.Errorf("S1 Percentage() = %v, want 90", s1.Percentage())
	}

	count, err := s.Count(ctx)
	if err != nil || count != 3 {
		t.Errorf("Count() = %d, %v, want 3", count, err)
	}
}

func testDuplicatesKept(t *testing.T, s grade.Store) {
	ctx := context.Background()
	batch := candidates(t, [4]string{"S1", "Ann", "50", "45"}, [4]string{"S1", "Ann", "50", "45"})
	if _, err := s.BulkInsert(ctx, batch); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if _, err := s.BulkInsert(ctx, batch[:1]); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if recs := mustList(t, s); len(recs) != 3 {
		t.Errorf("List() = %d records, want 3 duplicates kept", len(recs))
	}
}

func testUpdate(t *testing.T, s grade.Store) {
	ctx := context.Background()
	if _, err := s.BulkInsert(ctx, candidates(t, [4]string{"S1", "Ann", "50", "45"}, [4]string{"S2", "Bob", "10", "5"})); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	before := mustList(t, s)
	target := before[1]

	repl := candidates(t, [4]string{"S1-b", "Ann Lee", "80", "60"})[0]
	rec, err := s.Update(ctx, target.ID, repl)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.ID != target.ID || !rec.CreatedAt.Equal(target.CreatedAt) {
		t.Errorf("Update() identity = %s/%v, want %s/%v", rec.ID, rec.CreatedAt, target.ID, target.CreatedAt)
	}
	if rec.StudentID() != "S1-b" || rec.StudentName() != "Ann Lee" || math.Abs(rec.Percentage()-75) > 1e-9 {
		t.Errorf("Update() record = %q %q %v", rec.StudentID(), rec.StudentName(), rec.Percentage())
	}

	after := mustList(t, s)
	if got, want := studentIDs(after), []string{"S2", "S1-b"}; !slices.Equal(got, want) {
		t.Errorf("List() after update = %v, want %v", got, want)
	}
}

func testUpdateNotFound(t *testing.T, s grade.Store) {
	repl := candidates(t, [4]string{"S1", "Ann", "50", "45"})[0]
	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		if _, err := s.Update(context.Background(), id, repl); !errors.Is(err, grade.ErrNotFound) {
			t.Errorf("Update(%q) error = %v, want ErrNotFound", id, err)
		}
	}
	if recs := mustList(t, s); len(recs) != 0 {
		t.Errorf("Update of unknown id created %d records", len(recs))
	}
}

func testDelete(t *testing.T, s grade.Store) {
	ctx := context.Background()
	if _, err := s.BulkInsert(ctx, candidates(t, [4]string{"S1", "Ann", "50", "45"}, [4]string{"S2", "Bob", "10", "5"})); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	recs := mustList(t, s)

	if err := s.Delete(ctx, recs[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := studentIDs(mustList(t, s)); !slices.Equal(got, []string{"S1"}) {
		t.Errorf("List() after delete = %v, want [S1]", got)
	}
	if err := s.Delete(ctx, recs[0].ID); !errors.Is(err, grade.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func testDeleteNotFound(t *testing.T, s grade.Store) {
	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		if err := s.Delete(context.Background(), id); !errors.Is(err, grade.ErrNotFound) {
			t.Errorf("Delete(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}
