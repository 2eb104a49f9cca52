package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/taxilink/internal/app"
	"github.com/example/taxilink/internal/config"
	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/storage"
)

func main() {
	offline := flag.Bool("offline", false, "start with the connectivity flag off")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, "taxilink-cli", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	strategy, _ := matcher.ByName(cfg.Matcher)
	state := app.Load(ctx, app.Deps{Store: store, Strategy: strategy, Log: logger})

	c := newCLI(state, os.Stdin, os.Stdout, cfg.SplashDelay)
	c.online = !*offline
	if err := c.run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("terminal client stopped", "error", err)
		os.Exit(1)
	}
}
