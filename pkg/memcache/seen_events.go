// pkg/memcache/seen_events.go
package mem

import (
	"sync"
	"time"
)

// SeenEventStore remembers recently processed webhook event ids so replays
// inside the TTL skip the database entirely.
type SeenEventStore interface {
	// MarkSeen records id for ttl.
	MarkSeen(id string, ttl time.Duration)

	// Seen reports whether id was marked and has not expired.
	Seen(id string) bool
}

type entry struct {
	expiresAt time.Time
}

type SeenEvents struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewSeenEvents() *SeenEvents {
	return &SeenEvents{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *SeenEvents) MarkSeen(id string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = entry{expiresAt: s.now().Add(ttl)}
}

func (s *SeenEvents) Seen(id string) bool {
	s.mu.RLock()
	e, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if !s.now().After(e.expiresAt) {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent MarkSeen may have refreshed the id since the read
	e, ok = s.data[id]
	if !ok {
		return false
	}
	if s.now().After(e.expiresAt) {
		delete(s.data, id)
		return false
	}
	return true
}

// Sweep drops expired ids and returns how many were removed.
func (s *SeenEvents) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}
