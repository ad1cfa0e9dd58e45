package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/grade"
)

// memStore is an in-memory grade.Store with failure injection.
type memStore struct {
	mu      sync.Mutex
	records []grade.Record // insertion order
	nextID  int
	now     time.Time

	failInsert error
	failList   error
	calls      map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		calls: map[string]int{},
	}
}

func (m *memStore) List(ctx context.Context) ([]grade.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.failList != nil {
		return nil, m.failList
	}
	out := slices.Clone(m.records)
	slices.Reverse(out)
	return out, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) BulkInsert(ctx context.Context, cs []grade.Candidate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["insert"]++
	if m.failInsert != nil {
		return 0, m.failInsert
	}
	m.now = m.now.Add(time.Second)
	for _, c := range cs {
		m.nextID++
		m.records = append(m.records, grade.Record{
			ID:        fmt.Sprintf("r%d", m.nextID),
			CreatedAt: m.now,
			Candidate: c,
		})
	}
	return len(cs), nil
}

func (m *memStore) Update(ctx context.Context, id string, c grade.Candidate) (grade.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["update"]++
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Candidate = c
			return m.records[i], nil
		}
	}
	return grade.Record{}, fmt.Errorf("record %s: %w", id, grade.ErrNotFound)
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["delete"]++
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = slices.Delete(m.records, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", id, grade.ErrNotFound)
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var errStoreDown = errors.New("dial tcp 127.0.0.1:5432: connection refused")

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
		Cache: config.CacheConfig{ListTTL: time.Minute},
	}
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, testConfig()), store
}
