package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreBackend != "file" || cfg.StoreDir != "data" || cfg.Matcher != "first" || cfg.SplashDelay != 4*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MaxSessions != 1000 || cfg.SessionTTL != 30*time.Minute || cfg.KafkaTopic != "bookings" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("MATCHER", "cheapest")
	t.Setenv("SPLASH_DELAY", "0s")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("SESSION_TTL", "5m")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreBackend != "redis" || cfg.RedisAddr != "cache:6379" || cfg.Matcher != "cheapest" || cfg.SplashDelay != 0 || !cfg.RunMigrations {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("SESSION_TTL not applied: %v", cfg.SessionTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers not split: %v", cfg.KafkaBrokers)
	}
	if o := cfg.StoreOptions(); o.Backend != "redis" || o.RedisPrefix != "taxilink:" || !o.Migrate {
		t.Fatalf("unexpected store options %+v", o)
	}
}

func TestLoadCollectsAllErrors(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("MATCHER", "psychic")
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("MAX_SESSIONS", "many")
	_, err := Load()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"PG_DSN", "MATCHER", "HTTP_READ_TIMEOUT", "MAX_SESSIONS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "floppy")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "floppy") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}
