package dispatch

import (
	"errors"
	"sync"
)

// Conn is the part of *websocket.Conn a session writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// WSSession represents a connected driver session
type WSSession struct {
	conn Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(a)
}

// WSRegistry holds driver sessions
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[int64]*WSSession)} }

// Add registers conn for driverID, closing any previous connection.
func (r *WSRegistry) Add(driverID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = &WSSession{conn: conn}
}

// Remove drops the session if conn is still the registered one.
func (r *WSRegistry) Remove(driverID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok && s.conn == conn {
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Connected(driverID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[driverID]
	return ok
}

func (r *WSRegistry) Notify(a Assignment) error {
	r.mu.RLock()
	s, ok := r.sessions[a.DriverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(a); err != nil {
		r.Remove(a.DriverID, s.conn)
		return err
	}
	return nil
}

var ErrNoSession = errors.New("no ws session")
