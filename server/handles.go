package server

import (
	"sync"
	"time"

	"github.com/chazu/mpdump/vm"
	"github.com/google/uuid"
)

// handle is a server-side reference to an uploaded value.
type handle struct {
	value    vm.Value
	created  time.Time
	lastUsed time.Time
}

// HandleStore maps opaque string IDs to uploaded values, so a client can
// send a large value once and render it several times.
type HandleStore struct {
	mu      sync.Mutex
	handles map[string]*handle
	now     func() time.Time
}

// NewHandleStore creates a new handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
		now:     time.Now,
	}
}

// Create registers a value and returns an opaque handle ID.
func (s *HandleStore) Create(value vm.Value) string {
	id := "v-" + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.handles[id] = &handle{
		value:    value,
		created:  now,
		lastUsed: now,
	}
	return id
}

// Lookup retrieves the value for a handle and marks it used.
func (s *HandleStore) Lookup(id string) (vm.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = s.now()
	return h.value, true
}

// Release removes a handle. It reports whether the handle existed.
func (s *HandleStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[id]; !ok {
		return false
	}
	delete(s.handles, id)
	return true
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Sweep removes handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			delete(s.handles, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Debugf("swept %d idle handles", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
