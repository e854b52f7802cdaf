package rate

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryStore is an in-process [CounterStore] for single-node
// deployments and tests. A mutex around the whole increment keeps the
// check-and-record step atomic within the process; it offers no
// coordination across processes.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Incr records one attempt and returns the window count plus remaining
// window time. An elapsed window is replaced by a fresh one before the
// attempt is counted.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || now.Sub(w.start) >= window {
		w = &memoryWindow{start: now}
		s.windows[key] = w
	}

	w.count++
	remaining := window - now.Sub(w.start)
	return w.count, remaining, nil
}

// Reset clears the counter for key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
