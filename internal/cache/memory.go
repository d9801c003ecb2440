package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a bounded in-process Store. Expired entries are evicted on read.
type MemoryStore struct {
	mu    sync.Mutex
	items *lru.Cache[string, entry]
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	items, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{items: items, now: time.Now}, nil
}

// WithClock replaces the time source; used to exercise expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items.Get(key)
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		s.items.Remove(key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.items.Add(key, e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items.Peek(key)
	if !ok {
		return 0, nil
	}
	s.items.Remove(key)
	if e.expired(s.now()) {
		return 0, nil
	}
	return 1, nil
}
