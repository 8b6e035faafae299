package audit

import (
	"context"
	"sync"
	"time"

	"sentrix-hq/charon/pkg/pipeline"
)

// MemoryStore keeps audit records in memory, ordered by insertion.
// Intended for tests and small deployments without durability needs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	byID    map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Record),
	}
}

// Record persists one outcome.
func (s *MemoryStore) Record(_ context.Context, outcome *pipeline.Outcome) error {
	rec := &Record{
		RequestID:  outcome.RequestID,
		RecordedAt: time.Now(),
		Outcome:    outcome,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.byID[rec.RequestID] = rec
	return nil
}

// Get returns the record for a request ID, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns the most recent records, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// PruneBefore deletes records recorded before cutoff.
func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, rec := range s.records {
		if rec.RecordedAt.Before(cutoff) {
			delete(s.byID, rec.RequestID)
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return removed, nil
}

// PruneToCount deletes the oldest records until at most max remain.
func (s *MemoryStore) PruneToCount(_ context.Context, max int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := int64(len(s.records)) - max
	if excess <= 0 {
		return 0, nil
	}

	for _, rec := range s.records[:excess] {
		delete(s.byID, rec.RequestID)
	}
	s.records = append(s.records[:0], s.records[excess:]...)
	return excess, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
