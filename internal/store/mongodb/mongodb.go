// Package mongodb stores grade records as MongoDB documents, one per record.
//
// Bulk inserts are all-or-nothing only when transactions are enabled, which
// needs a replica set. Without them a failed InsertMany is compensated by
// deleting every document of the batch; if that delete also fails the
// returned error says so and part of the batch may remain.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/grade"
)

const countersCollection = "counters"

// compensateTimeout bounds the cleanup of a failed batch, which runs even
// when the request context is already cancelled.
const compensateTimeout = 30 * time.Second

type document struct {
	ID            string    `bson:"_id"`
	Seq           int64     `bson:"seq"`
	StudentID     string    `bson:"student_id"`
	StudentName   string    `bson:"student_name"`
	TotalMarks    float64   `bson:"total_marks"`
	MarksObtained float64   `bson:"marks_obtained"`
	Percentage    float64   `bson:"percentage"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (d document) record() grade.Record {
	return grade.Record{
		ID:        d.ID,
		CreatedAt: d.CreatedAt.UTC(),
		Candidate: grade.Restore(d.StudentID, d.StudentName, d.TotalMarks, d.MarksObtained),
	}
}

// Store is a grade.Store backed by a MongoDB collection.
type Store struct {
	client       *mongo.Client
	coll         *mongo.Collection
	counters     *mongo.Collection
	transactions bool
	now          func() time.Time
}

// Open connects to cfg.URL, verifies the primary is reachable and ensures
// the listing index.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URL).
		SetMaxPoolSize(uint64(cfg.MaxConns)).
		SetMinPoolSize(uint64(cfg.MinConns)).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s, err := New(connectCtx, client, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoTransactions)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New uses an existing client. The client is disconnected by Close.
func New(ctx context.Context, client *mongo.Client, database, collection string, transactions bool) (*Store, error) {
	db := client.Database(database)
	s := &Store{
		client:       client,
		coll:         db.Collection(collection),
		counters:     db.Collection(countersCollection),
		transactions: transactions,
		now:          time.Now,
	}

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "created_at", Value: -1},
			{Key: "seq", Value: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) List(ctx context.Context) ([]grade.Record, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "seq", Value: -1},
	})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}

	records := make([]grade.Record, len(docs))
	for i, d := range docs {
		records[i] = d.record()
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// BulkInsert writes the batch with one InsertMany, inside a transaction when
// enabled and otherwise followed by a compensating delete on failure.
func (s *Store) BulkInsert(ctx context.Context, candidates []grade.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	first, err := s.reserveSeq(ctx, len(candidates))
	if err != nil {
		return 0, err
	}

	created := s.now().UTC().Truncate(time.Millisecond)
	docs := make([]any, len(candidates))
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = uuid.New().String()
		docs[i] = document{
			ID:            ids[i],
			Seq:           first + int64(i),
			StudentID:     c.StudentID(),
			StudentName:   c.StudentName(),
			TotalMarks:    c.TotalMarks(),
			MarksObtained: c.MarksObtained(),
			Percentage:    c.Percentage(),
			CreatedAt:     created,
		}
	}

	if s.transactions {
		return s.insertInTransaction(ctx, docs)
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return 0, s.compensate(ctx, ids, err)
	}
	return len(docs), nil
}

func (s *Store) insertInTransaction(ctx context.Context, docs []any) (int, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return s.coll.InsertMany(sc, docs)
	})
	if err != nil {
		return 0, fmt.Errorf("insert students in transaction: %w", err)
	}
	return len(docs), nil
}

// compensate deletes whatever part of a failed batch was written.
func (s *Store) compensate(ctx context.Context, ids []string, insertErr error) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	_, err := s.coll.DeleteMany(cleanupCtx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("insert students: %w; removing partial batch of %d failed, some rows may remain: %w",
			insertErr, len(ids), err)
	}
	return fmt.Errorf("insert students: %w", insertErr)
}

// reserveSeq atomically reserves n sequence numbers and returns the first.
// Sequence numbers order rows written within the same millisecond.
func (s *Store) reserveSeq(ctx context.Context, n int) (int64, error) {
	res := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.coll.Name()},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&counter); err != nil {
		return 0, fmt.Errorf("reserve sequence: %w", err)
	}
	return counter.Seq - int64(n) + 1, nil
}

func (s *Store) Update(ctx context.Context, id string, c grade.Candidate) (grade.Record, error) {
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"student_id":     c.StudentID(),
			"student_name":   c.StudentName(),
			"total_marks":    c.TotalMarks(),
			"marks_obtained": c.MarksObtained(),
			"percentage":     c.Percentage(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var doc document
	err := res.Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return grade.Record{}, fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	if err != nil {
		return grade.Record{}, fmt.Errorf("update student %s: %w", id, err)
	}
	return doc.record(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("student %s: %w", id, grade.ErrNotFound)
	}
	return nil
}
