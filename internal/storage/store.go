package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/taxilink/internal/observability"
)

// Keys the engine persists under. They match the layout the browser client
// kept in localStorage so exported data can be loaded as-is.
const (
	KeyDrivers = "taxilinksa_drivers"
	KeyHistory = "taxilinksa_history"
	KeyUser    = "taxilinksa_user"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a synchronous key-value store holding JSON documents.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// LoadOr decodes the value stored under key. A missing, null, unreadable or
// undecodable value yields def; the failure is logged and counted but never
// returned.
func LoadOr[T any](ctx context.Context, s Store, key string, def T, log *slog.Logger) T {
	raw, err := s.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			recovered(log, key, err)
		}
		return def
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		recovered(log, key, err)
		return def
	}
	if v == nil {
		return def
	}
	return *v
}

func recovered(log *slog.Logger, key string, err error) {
	observability.StoreRecoveries.WithLabelValues(key).Inc()
	if log != nil {
		log.Warn("stored value unusable, using defaults", "key", key, "error", err)
	}
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Save(ctx, key, b); err != nil {
		observability.StoreWriteErrors.WithLabelValues(key).Inc()
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}
