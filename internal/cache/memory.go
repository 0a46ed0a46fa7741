package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	tags    map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), tags: make(map[string]time.Time)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	return e, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) SetTagInvalidation(_ context.Context, tag string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[tag] = at
	return nil
}

func (s *MemoryStore) TagInvalidations(_ context.Context, tags []string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(tags))
	for _, tag := range tags {
		if at, ok := s.tags[tag]; ok {
			out[tag] = at
		}
	}
	return out, nil
}
