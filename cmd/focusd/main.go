// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/focusd/internal/api"
	"github.com/ManuGH/focusd/internal/bus"
	"github.com/ManuGH/focusd/internal/clock"
	"github.com/ManuGH/focusd/internal/config"
	"github.com/ManuGH/focusd/internal/domain/session/engine"
	fdlog "github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/stats"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.Load()

	fdlog.Configure(fdlog.Config{
		Level:   cfg.LogLevel,
		Service: "focusd",
		Version: version,
	})
	logger := fdlog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.invalid").
			Msg("refusing to start with invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreBackend == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			logger.Fatal().Err(err).
				Str("event", "datadir.create_failed").
				Str("path", cfg.DataDir).
				Msg("cannot create data directory")
		}
	}

	store, err := stats.OpenStore(cfg.StoreBackend, cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "store.open_failed").
			Str("backend", cfg.StoreBackend).
			Msg("cannot open stats store")
	}
	defer func() { _ = store.Close() }()

	eventBus := bus.NewMemoryBus()
	eng := engine.New(clock.System(), store, eventBus, engine.Limits{
		MaxSessionMinutes: cfg.MaxSessionMinutes,
		MaxExtendMinutes:  cfg.MaxExtendMinutes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(eng, store, cfg).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Str("event", "daemon.listening").
			Str("addr", cfg.ListenAddr).
			Str("backend", cfg.StoreBackend).
			Msg("focusd ready")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown incomplete")
	}
}
