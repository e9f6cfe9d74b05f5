// Command server exposes photo search, uploads and notification intake over
// HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/api"
	"github.com/dharsanguruparan/photosearch/internal/app"
	"github.com/dharsanguruparan/photosearch/internal/config"
	logpkg "github.com/dharsanguruparan/photosearch/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("PHOTOSEARCH_CONFIG"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting photosearch api",
		zap.String("env", cfg.Env),
		zap.String("address", cfg.Address),
		zap.String("store", cfg.Store.Driver),
		zap.String("disambiguator", cfg.Disambiguator.Provider),
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init services", zap.Error(err))
	}
	defer a.Close()

	queueClient := asynq.NewClient(a.RedisOpt())
	defer queueClient.Close()

	srv := api.New(cfg, a.Query, a.Storage, queueClient, logger.Named("api"))
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
