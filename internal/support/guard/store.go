// Package guard protects ticket creation with rate limiting and duplicate
// suppression. State lives behind the Store interface so the same logic runs
// against a process-local map in tests and a shared Redis in production.
package guard

import (
	"context"
	"sync"
	"time"
)

// Store is the key-value surface the guards need: windowed counters and
// set-if-absent marks with a TTL.
type Store interface {
	// Incr increments the counter at key, starting a window of the given
	// length on first increment, and returns the new count plus the time
	// remaining in the window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
	// SetIfAbsent records key with a TTL and reports whether it was absent.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryStore is a mutex-guarded in-process Store. State is volatile and lost
// on restart, which is acceptable for these guards.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*counterWindow
	marks     map[string]markEntry
	pruneSize int
	now       func() time.Time
}

type counterWindow struct {
	count int64
	reset time.Time
}

type markEntry struct {
	expires time.Time
}

func NewMemoryStore(pruneSize int) *MemoryStore {
	if pruneSize <= 0 {
		pruneSize = 1000
	}
	return &MemoryStore{
		counters:  make(map[string]*counterWindow),
		marks:     make(map[string]markEntry),
		pruneSize: pruneSize,
		now:       time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.counters[key]
	if !ok || !now.Before(w.reset) {
		w = &counterWindow{reset: now.Add(window)}
		s.counters[key] = w
	}
	w.count++
	return w.count, w.reset.Sub(now), nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.marks[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	s.marks[key] = markEntry{expires: now.Add(ttl)}

	if len(s.marks) > s.pruneSize {
		s.pruneLocked(now)
	}
	return true, nil
}

// pruneLocked evicts expired marks and stale counter windows. Called with the
// mutex held.
func (s *MemoryStore) pruneLocked(now time.Time) {
	for k, e := range s.marks {
		if !now.Before(e.expires) {
			delete(s.marks, k)
		}
	}
	for k, w := range s.counters {
		if !now.Before(w.reset) {
			delete(s.counters, k)
		}
	}
}
