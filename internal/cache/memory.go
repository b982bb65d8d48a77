package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spendscan/internal/core"
)

// MemoryStore is the in-process Store used by the memory backend and by
// tests. Batches apply under one lock, so readers never observe a
// half-written batch.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]core.CacheEntry
	meta    *core.AnalysisMetadata
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]core.CacheEntry)}
}

func (s *MemoryStore) Upsert(_ context.Context, entries []core.CacheEntry) error {
	// Validate before taking the lock: an invalid entry rejects the
	// whole batch with nothing applied.
	if err := validateBatch(entries); err != nil {
		return fmt.Errorf("validate batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.MessageID] = e
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, messageID int64) (core.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[messageID]
	if !ok {
		return core.CacheEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) TransactionsSince(_ context.Context, since time.Time) ([]core.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.CacheEntry
	for _, e := range s.entries {
		if e.HasTransaction && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (s *MemoryStore) StaleIDs(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, e := range s.entries {
		if e.ProcessedAt.Before(cutoff) {
			ids = append(ids, e.MessageID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) MarkExcluded(_ context.Context, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[messageID]
	if !ok {
		return ErrNotFound
	}
	entry.Excluded = true
	s.entries[messageID] = entry
	return nil
}

func (s *MemoryStore) Metadata(_ context.Context) (core.AnalysisMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.meta == nil {
		return core.AnalysisMetadata{}, ErrNotFound
	}
	return *s.meta, nil
}

func (s *MemoryStore) SaveMetadata(_ context.Context, meta core.AnalysisMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = &meta
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
