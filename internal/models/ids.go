package models

import (
	"sync"
	"time"
)

// IDSource hands out creation-time based ids (Unix milliseconds) that are
// strictly increasing, even when two are requested within the same
// millisecond or the clock steps backwards.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource(floor int64) *IDSource {
	return &IDSource{last: floor, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *IDSource) WithClock(now func() time.Time) *IDSource {
	s.now = now
	return s
}

// Observe raises the floor so later ids stay above id.
func (s *IDSource) Observe(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}

func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}
