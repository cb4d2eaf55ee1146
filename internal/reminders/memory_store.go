package reminders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	s.mu.Lock()
	s.entries[e.ID] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok, nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Entry
	for _, e := range s.entries {
		if !e.DueAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		delete(s.entries, e.ID)
	}
	return due, nil
}

// Pending returns every entry not yet claimed, earliest first.
func (s *MemoryStore) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}
