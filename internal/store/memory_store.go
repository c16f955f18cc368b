package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
)

type memoryEntry struct {
	rec      domain.Record
	expireAt time.Time
}

// MemorySessionStore is the single-process adapter used by tests and
// local development. It mirrors the Redis adapter's semantics, including
// lazy expiry on read.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, opaque string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[opaque]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if !entry.expireAt.After(now) || entry.rec.Expired(now) {
		delete(s.entries, opaque)
		return nil, ErrNotFound
	}
	rec := entry.rec
	return &rec, nil
}

func (s *MemorySessionStore) Put(_ context.Context, opaque string, rec domain.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session store: ttl must be positive, got %v", ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[opaque] = memoryEntry{rec: rec, expireAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, opaque string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, opaque)
	return nil
}

// SetClock overrides the store clock; tests use it to simulate expiry.
func (s *MemorySessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Len reports the number of live entries, expired ones included until
// their next read.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
