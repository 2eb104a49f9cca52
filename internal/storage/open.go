package storage

import (
	"context"
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	PGDSN         string
	Migrate       bool
}

// Open builds the configured backend. The returned close func is never nil.
func Open(ctx context.Context, o Options) (Store, func() error, error) {
	noop := func() error { return nil }
	switch o.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendFile:
		fs, err := NewFileStore(o.Dir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case BackendRedis:
		rs := NewRedisStore(o.RedisAddr, o.RedisPassword, o.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, noop, fmt.Errorf("redis store: %w", err)
		}
		return rs, rs.Close, nil
	case BackendPostgres:
		ps, err := NewPostgresStore(o.PGDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres store: %w", err)
		}
		if o.Migrate {
			if err := ps.EnsureSchema(ctx); err != nil {
				_ = ps.Close()
				return nil, noop, fmt.Errorf("postgres schema: %w", err)
			}
		}
		return ps, ps.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", o.Backend)
	}
}
