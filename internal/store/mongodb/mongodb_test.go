package mongodb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/store/storetest"
)

// newTestStore opens a store in a throwaway database of TEST_MONGO_URL.
// Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_MONGO_URL")
	if url == "" {
		t.Skip("TEST_MONGO_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	dbName := "gradebook_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := New(ctx, client, dbName, "students", false)
	if err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) grade.Store { return newTestStore(t) })
}

func TestBulkInsert_CompensatesFailedBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A validator refuses one document in the middle of the batch.
	err := s.coll.Database().RunCommand(ctx, bson.D{
		{Key: "collMod", Value: s.coll.Name()},
		{Key: "validator", Value: bson.M{"student_id": bson.M{"$ne": "BOOM"}}},
	}).Err()
	if err != nil {
		t.Fatalf("collMod: %v", err)
	}

	batch := []grade.Candidate{
		grade.Restore("S1", "Ann", 10, 5),
		grade.Restore("BOOM", "Bad", 10, 5),
		grade.Restore("S3", "Cy", 10, 5),
	}
	n, err := s.BulkInsert(ctx, batch)
	if err == nil {
		t.Fatal("BulkInsert() expected error")
	}
	if n != 0 {
		t.Errorf("BulkInsert() = %d, want 0", n)
	}
	if count, _ := s.Count(ctx); count != 0 {
		t.Errorf("Count() = %d after compensated batch, want 0", count)
	}
}

func TestReserveSeq_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.reserveSeq(ctx, 3)
	if err != nil {
		t.Fatalf("reserveSeq() error = %v", err)
	}
	b, err := s.reserveSeq(ctx, 2)
	if err != nil {
		t.Fatalf("reserveSeq() error = %v", err)
	}
	if a != 1 || b != 4 {
		t.Errorf("reserveSeq = %d then %d, want 1 then 4", a, b)
	}
}

func TestUpdate_NotFoundIsSentinel(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), "missing", grade.Restore("S1", "Ann", 10, 5))
	if !errors.Is(err, grade.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}
