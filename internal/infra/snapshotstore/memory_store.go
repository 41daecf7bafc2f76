package snapshotstore

import (
	"context"
	"sync"
	"time"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
)

// MemoryStore caches the published category list in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	entry     []catalog.Category
	hasEntry  bool
	expiresAt time.Time
}

// NewMemoryStore constructs an empty cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements catalog.SnapshotCache.
func (s *MemoryStore) Load(_ context.Context) ([]catalog.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasEntry {
		return nil, false, nil
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return nil, false, nil
	}
	out := make([]catalog.Category, len(s.entry))
	copy(out, s.entry)
	return out, true, nil
}

// Save implements catalog.SnapshotCache.
func (s *MemoryStore) Save(_ context.Context, categories []catalog.Category, ttl time.Duration) error {
	entry := make([]catalog.Category, len(categories))
	copy(entry, categories)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = entry
	s.hasEntry = true
	if ttl > 0 {
		s.expiresAt = time.Now().Add(ttl)
	} else {
		s.expiresAt = time.Time{}
	}
	return nil
}

var _ catalog.SnapshotCache = (*MemoryStore)(nil)
