package store

import (
	"sync"
	"time"

	"StockNewsScanner/internal/domain"
)

const defaultCapacity = 100

// Store is a bounded collection of accepted events, ordered by arrival.
// Appends are chronological, so the front always holds the oldest event.
type Store struct {
	mu       sync.Mutex
	events   []domain.NewsEvent
	capacity int
}

// New builds an empty store with the given capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{capacity: capacity}
}

// Append adds an event, dropping the oldest one at capacity.
func (s *Store) Append(event domain.NewsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.capacity {
		// Reslice instead of copying; append reallocates once the
		// backing array fills, reclaiming the dropped prefix.
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
}

// EvictOlderThan removes events with timestamps before cutoff and
// returns how many were removed.
func (s *Store) EvictOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for removed < len(s.events) && s.events[removed].Timestamp.Before(cutoff) {
		removed++
	}
	s.events = s.events[removed:]
	return removed
}

// Snapshot returns a consistent copy of the current contents.
func (s *Store) Snapshot() []domain.NewsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.NewsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Restore hydrates the store from a persisted snapshot, keeping only
// the newest capacity entries.
func (s *Store) Restore(events []domain.NewsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) > s.capacity {
		events = events[len(events)-s.capacity:]
	}
	s.events = append(s.events[:0:0], events...)
}

// Len reports the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
