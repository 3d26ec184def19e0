package usage

import (
	"context"
	"sync"

	"careerguide/internal/model"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[model.CounterKey]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[model.CounterKey]int)}
}

func (s *MemoryStore) Increment(ctx context.Context, key model.CounterKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *MemoryStore) Get(ctx context.Context, key model.CounterKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

// Sweep removes counters for months before the given one.
func (s *MemoryStore) Sweep(ctx context.Context, before model.YearMonth) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for k := range s.counters {
		if k.Month.Before(before) {
			delete(s.counters, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
