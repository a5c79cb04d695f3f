package worker

import (
	"sync"

	"github.com/google/uuid"
)

// InFlight is a generic keyed set, adapted from the teacher's segmenting
// Cache[T] (cache/cache.go), repurposed here to enforce §5's per-project
// concurrency=1 rule: a project id is Stored for the duration of its running
// task and Removed when the task finishes, so the dispatcher can refuse to
// start a second task for a project that already has one in flight.
type InFlight[T any] struct {
	mu    sync.Mutex
	items map[uuid.UUID]T
}

// NewInFlight constructs an empty set.
func NewInFlight[T any]() *InFlight[T] {
	return &InFlight[T]{items: make(map[uuid.UUID]T)}
}

// Store records value under projectID, overwriting any prior entry.
func (s *InFlight[T]) Store(projectID uuid.UUID, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[projectID] = value
}

// Remove deletes the entry for projectID, if any.
func (s *InFlight[T]) Remove(projectID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, projectID)
}

// Get returns the value stored for projectID and whether one exists.
func (s *InFlight[T]) Get(projectID uuid.UUID) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[projectID]
	return v, ok
}

// Has reports whether projectID currently has an entry, i.e. a task for that
// project is already running somewhere in the pool.
func (s *InFlight[T]) Has(projectID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[projectID]
	return ok
}

// Len returns the number of in-flight entries, used by metrics.
func (s *InFlight[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshot returns a copy of the current keys. Nothing in this repository
// calls it; the janitor works from the store's RUNNING rows alone.
func (s *InFlight[T]) Snapshot() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	return out
}
