package source

import (
	"sync/atomic"

	"sentrix-hq/charon/pkg/filter"
)

// Store holds the active RuleSet reference. Concurrent readers take the
// current snapshot without locking; Swap atomically replaces the reference
// and never mutates a RuleSet in place. Requests already past rule
// evaluation are unaffected by a swap.
type Store struct {
	current atomic.Pointer[filter.RuleSet]
}

// NewStore creates a store with an initial snapshot. The snapshot must
// already be validated.
func NewStore(rs *filter.RuleSet) *Store {
	s := &Store{}
	s.current.Store(rs)
	return s
}

// Current returns the active RuleSet. The returned snapshot is immutable;
// callers keep using it for the duration of one request even if a swap
// happens mid-flight.
func (s *Store) Current() *filter.RuleSet {
	return s.current.Load()
}

// Swap atomically replaces the active RuleSet.
func (s *Store) Swap(rs *filter.RuleSet) {
	s.current.Store(rs)
}
