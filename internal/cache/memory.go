package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]memoryEntry
	clock func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), clock: time.Now}
}

// WithClock overrides the time source, used by tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	window = defaultWindow(window)
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	var count int64
	if ok && !entry.expired(now) {
		count, _ = strconv.ParseInt(string(entry.value), 10, 64)
	} else {
		entry = memoryEntry{expiresAt: now.Add(window)}
	}
	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	s.data[key] = entry

	return count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(s.clock()) {
		delete(s.data, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}
