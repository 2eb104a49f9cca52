package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/taxilink/internal/config"
	"github.com/example/taxilink/internal/events"
	"github.com/example/taxilink/internal/logging"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total booking engine events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	cfg, err := config.Load()
	logger := logging.NewLogger("taxilink-consumer", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.RedisPassword})
	m := &mirror{rc: &redisAdapter{c: rc}, prefix: cfg.RedisKeyPrefix}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", brokers, "group", cfg.KafkaGroup)
	consume(ctx, r, m, logger)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// consume mirrors every event until ctx is cancelled. Read errors back off
// exponentially up to maxBackoff.
func consume(ctx context.Context, r messageReader, m *mirror, logger *slog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		e, err := events.Decode(msg.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", msg.Offset, "error", err)
			continue
		}

		if err := m.applyWithRetry(ctx, e, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "type", e.Type, "key", e.Key(), "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater is the subset of redis operations the mirror needs.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	// PushUnique moves value to the head of the list, dropping earlier copies.
	PushUnique(ctx context.Context, key string, value interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) PushUnique(ctx context.Context, key string, value interface{}) error {
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, key, 0, value)
		p.LPush(ctx, key, value)
		return nil
	})
	return err
}

// mirror keeps a read model of bookings and drivers in redis: one hash per
// booking and driver, plus a newest-first list of committed booking ids.
type mirror struct {
	rc     RedisUpdater
	prefix string
}

func (m *mirror) bookingKey(id int64) string { return m.prefix + "booking:" + strconv.FormatInt(id, 10) }
func (m *mirror) driverKey(id int64) string  { return m.prefix + "driver:" + strconv.FormatInt(id, 10) }
func (m *mirror) recentKey() string          { return m.prefix + "bookings:recent" }

func (m *mirror) apply(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.TypeBookingCommitted, events.TypeBookingStatus:
		if e.Booking == nil {
			return fmt.Errorf("%s event without booking", e.Type)
		}
		b := e.Booking
		if err := m.rc.HSet(ctx, m.bookingKey(b.ID), map[string]interface{}{
			"from":       b.From,
			"to":         b.To,
			"status":     string(b.Status),
			"method":     string(b.Method),
			"price":      b.Price,
			"driver":     b.Driver,
			"user":       b.User,
			"updated_at": e.At.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		if e.Type == events.TypeBookingCommitted {
			return m.rc.PushUnique(ctx, m.recentKey(), b.ID)
		}
		return nil
	case events.TypeDriverRegistered, events.TypeDriverAvailable:
		if e.Driver == nil {
			return fmt.Errorf("%s event without driver", e.Type)
		}
		d := e.Driver
		return m.rc.HSet(ctx, m.driverKey(d.ID), map[string]interface{}{
			"name":      d.Name,
			"phone":     d.Phone,
			"car":       d.Car,
			"rating":    d.Rating,
			"price":     d.Price,
			"eta":       d.ETA,
			"available": d.Available,
		})
	default:
		return nil
	}
}

// applyWithRetry applies e with retry/backoff. Every write overwrites or
// dedupes, so a partially applied or redelivered event is safe to repeat.
func (m *mirror) applyWithRetry(ctx context.Context, e events.Event, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = m.apply(ctx, e); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}
