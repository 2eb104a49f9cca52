package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/taxilink/internal/app"
	"github.com/example/taxilink/internal/config"
	"github.com/example/taxilink/internal/dispatch"
	"github.com/example/taxilink/internal/events"
	"github.com/example/taxilink/internal/geo"
	httpapi "github.com/example/taxilink/internal/http"
	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/storage"
)

func main() {
	cfg, err := config.Load()
	logger := logging.NewLogger("taxilink-api", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer closeStore()

	strategy, err := matcher.ByName(cfg.Matcher)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var ranks geo.Ranks = geo.NewIndex(geo.DefaultRanks()...)
	if cfg.RedisAddr != "" {
		rr := geo.NewRedisRanks(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, logger.With("component", "ranks"))
		for _, r := range geo.DefaultRanks() {
			rr.Add(r)
		}
		ranks = rr
	}

	ws := dispatch.NewWSRegistry()
	state := app.Load(ctx, app.Deps{
		Store:     store,
		Strategy:  strategy,
		Notifier:  dispatch.Fallback{Primary: ws, Secondary: dispatch.LogNotifier{Log: logger.With("component", "dispatch")}},
		Publisher: publisher,
		Ranks:     ranks,
		Log:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(state, httpapi.Options{WS: ws, Logger: logger, MaxSessions: cfg.MaxSessions, SessionTTL: cfg.SessionTTL}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("taxilink listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend, "matcher", strategy.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
