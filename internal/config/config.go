package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/storage"
)

// Config captures all tunable parameters for the API server and the
// terminal client. Values are loaded from environment variables with
// defaults that work locally without any infrastructure.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StoreBackend string
	StoreDir     string

	RedisAddr      string
	RedisPassword  string
	RedisKeyPrefix string
	RedisGeoKey    string

	PGDSN string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	Matcher     string
	SplashDelay time.Duration
	MaxSessions int
	SessionTTL  time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		StoreBackend:    storage.BackendFile,
		StoreDir:        "data",
		RedisKeyPrefix:  "taxilink:",
		RedisGeoKey:     "taxi_ranks",
		KafkaTopic:      "bookings",
		KafkaGroup:      "taxilink-mirror",
		Matcher:         matcher.NameFirst,
		SplashDelay:     4 * time.Second,
		MaxSessions:     1000,
		SessionTTL:      30 * time.Minute,
		LogLevel:        "info",
	}
}

// Load reads the environment. It returns the config together with every
// problem found, joined, so callers can report them all at once.
func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(strings.TrimSpace(v))
	}
	setStringFromEnv(&cfg.StoreDir, "STORE_DIR")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisKeyPrefix, "REDIS_KEY_PREFIX")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	if v := os.Getenv("MATCHER"); v != "" {
		cfg.Matcher = strings.ToLower(strings.TrimSpace(v))
	}
	setDurationFromEnv(&cfg.SplashDelay, "SPLASH_DELAY", &errs)
	setIntFromEnv(&cfg.MaxSessions, "MAX_SESSIONS", &errs)
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (c Config) validate() []error {
	var errs []error
	switch c.StoreBackend {
	case storage.BackendMemory, storage.BackendFile:
	case storage.BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("STORE_BACKEND=redis requires REDIS_ADDR"))
		}
	case storage.BackendPostgres:
		if c.PGDSN == "" {
			errs = append(errs, fmt.Errorf("STORE_BACKEND=postgres requires PG_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if _, err := matcher.ByName(c.Matcher); err != nil {
		errs = append(errs, fmt.Errorf("invalid MATCHER: %w", err))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SESSIONS must be > 0"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be > 0"))
	}
	if c.SplashDelay < 0 {
		errs = append(errs, fmt.Errorf("SPLASH_DELAY must be >= 0"))
	}
	return errs
}

// StoreOptions maps the config onto storage.Open.
func (c Config) StoreOptions() storage.Options {
	return storage.Options{
		Backend:       c.StoreBackend,
		Dir:           c.StoreDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisPrefix:   c.RedisKeyPrefix,
		PGDSN:         c.PGDSN,
		Migrate:       c.RunMigrations,
	}
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
