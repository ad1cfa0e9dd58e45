package core

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/grade"
)

const listCacheKey = "records"

// Service provides the grade import and record operations. It holds no
// transport or storage specifics; the store is passed in by the caller.
type Service struct {
	store   grade.Store
	upload  config.UploadConfig
	limiter *ImportLimiter

	// cache holds the last full listing; nil when caching is disabled.
	cache *cache.Cache

	// gen is bumped on every write so a listing read before the write can
	// never be cached after it.
	mu  sync.Mutex
	gen uint64
}

// NewService creates a Service over store using the upload and cache
// settings of cfg.
func NewService(store grade.Store, cfg *config.Config) *Service {
	s := &Service{
		store:   store,
		upload:  cfg.Upload,
		limiter: NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}
	if ttl := cfg.Cache.ListTTL; ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// ImportLimiterStatus returns the current import slot usage.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import is running or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Ping checks that the store answers and returns the number of stored records.
func (s *Service) Ping(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.Count(ctx)
}

// invalidate drops the cached listing. Called before and after every write.
func (s *Service) invalidate() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Delete(listCacheKey)
	}
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// remember caches list if no write happened since gen was read.
func (s *Service) remember(gen uint64, list *RecordList) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.SetDefault(listCacheKey, list)
	}
}

func (s *Service) cached() (*RecordList, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(listCacheKey)
	if !ok {
		return nil, false
	}
	return v.(*RecordList), true
}
