package msgset

import (
	"slices"
	"sync"
)

// Set is a grow-only set of broadcast values. Values are never removed,
// so every snapshot is a superset of the snapshots taken before it.
// Len is also called from the metrics scrape goroutine.
type Set struct {
	mu   sync.RWMutex
	data map[uint64]struct{}
}

func New() *Set {
	return &Set{data: make(map[uint64]struct{})}
}

// Add inserts v and reports whether it was new.
func (s *Set) Add(v uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[v]; ok {
		return false
	}
	s.data[v] = struct{}{}
	return true
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a sorted copy of the values; never nil.
func (s *Set) Snapshot() []uint64 {
	s.mu.RLock()
	out := make([]uint64, 0, len(s.data))
	for v := range s.data {
		out = append(out, v)
	}
	s.mu.RUnlock()

	slices.Sort(out)
	return out
}
