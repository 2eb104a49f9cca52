package httpapi

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long a session may sit unused before it is
// dropped.
const DefaultSessionTTL = 30 * time.Minute

type entry[T any] struct {
	mu   sync.Mutex
	v    T
	used time.Time // guarded by sessions.mu
}

// sessions holds transient per-client state keyed by an opaque id. Work on
// a single session is serialized; different sessions proceed in parallel.
// Idle sessions expire after ttl. When the table is full the least recently
// used session makes room for the new one.
type sessions[T any] struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	now   func() time.Time
	items map[string]*entry[T]
}

func newSessions[T any](max int, ttl time.Duration) *sessions[T] {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessions[T]{max: max, ttl: ttl, now: time.Now, items: make(map[string]*entry[T])}
}

func (s *sessions[T]) add(v T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if s.max > 0 && len(s.items) >= s.max {
		s.evictOldest()
	}
	id := uuid.NewString()
	s.items[id] = &entry[T]{v: v, used: now}
	return id
}

// sweep drops every session idle for longer than ttl. Callers hold s.mu.
func (s *sessions[T]) sweep(now time.Time) {
	for id, e := range s.items {
		if now.Sub(e.used) > s.ttl {
			delete(s.items, id)
		}
	}
}

func (s *sessions[T]) evictOldest() {
	var oldest string
	var at time.Time
	for id, e := range s.items {
		if oldest == "" || e.used.Before(at) {
			oldest, at = id, e.used
		}
	}
	delete(s.items, oldest)
}

// with runs fn while holding the session's lock.
func (s *sessions[T]) with(id string, fn func(T) error) error {
	s.mu.Lock()
	e, ok := s.items[id]
	if ok {
		now := s.now()
		if now.Sub(e.used) > s.ttl {
			delete(s.items, id)
			ok = false
		} else {
			e.used = now
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.v)
}

// remove reports whether the session existed.
func (s *sessions[T]) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

func (s *sessions[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
