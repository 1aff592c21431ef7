package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rowens2025/powervisualize/internal/domain/guard"
)

// entry is a stored guard state with expiration
type entry struct {
	state     guard.State
	expiresAt time.Time
}

// InMemoryGuardStore implements guard.Store using an in-memory map.
// State is not shared across process instances.
type InMemoryGuardStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryGuardStore
type InMemoryOption func(*InMemoryGuardStore)

// WithStoreClock overrides the time source used for expiry
func WithStoreClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryGuardStore) {
		s.now = now
	}
}

// NewInMemoryGuardStore creates a new in-memory guard store and starts a
// background goroutine that sweeps expired entries.
func NewInMemoryGuardStore(opts ...InMemoryOption) *InMemoryGuardStore {
	store := &InMemoryGuardStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Update applies fn to the current state of key under the store lock and
// saves the result with ttl.
func (s *InMemoryGuardStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(*guard.State)) (guard.State, error) {
	if err := ctx.Err(); err != nil {
		return guard.State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var state guard.State
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		state = e.state
	}

	fn(&state)
	s.entries[key] = entry{state: state, expiresAt: now.Add(ttl)}
	return state, nil
}

// Get returns the state of key, if present and not expired
func (s *InMemoryGuardStore) Get(ctx context.Context, key string) (guard.State, bool, error) {
	if err := ctx.Err(); err != nil {
		return guard.State{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return guard.State{}, false, nil
	}
	return e.state, true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryGuardStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryGuardStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries
func (s *InMemoryGuardStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryGuardStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ guard.Store = (*InMemoryGuardStore)(nil)
