package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snapdish/snapdish/internal/api"
	"github.com/snapdish/snapdish/internal/config"
	"github.com/snapdish/snapdish/internal/env"
	"github.com/snapdish/snapdish/internal/log"
	"github.com/snapdish/snapdish/internal/setup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	const setupTime = 30 * time.Second
	setupCtx, cancel := context.WithTimeout(ctx, setupTime)
	defer cancel()

	logger := log.New(nil)

	conf, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := setup.Database(setupCtx, conf)
	if err != nil {
		logger.Error("failed to setup database", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := setup.ObjectStore(conf)
	if err != nil {
		logger.Error("failed to setup object store", slog.Any("error", err))
		os.Exit(1)
	}

	imp, gate, err := setup.Importer(setupCtx, conf, db, store, logger)
	if err != nil {
		logger.Error("failed to setup import pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	environment := &env.Env{
		Logger:   logger,
		Config:   conf,
		Database: db,
		Importer: imp,
		Gate:     gate,
	}

	if err := api.Start(environment); err != nil {
		logger.Error("API failed", slog.Any("error", err))
		os.Exit(1)
	}
}
