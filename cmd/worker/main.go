// Command worker indexes uploaded photos. It consumes photo:index tasks and,
// when enabled, turns bucket notifications into those tasks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/app"
	"github.com/dharsanguruparan/photosearch/internal/config"
	logpkg "github.com/dharsanguruparan/photosearch/internal/logger"
	"github.com/dharsanguruparan/photosearch/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("PHOTOSEARCH_CONFIG"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init services", zap.Error(err))
	}
	defer a.Close()

	if err := a.Storage.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.String("bucket", a.Storage.Bucket()), zap.Error(err))
	}

	if cfg.S3.Listen {
		client := asynq.NewClient(a.RedisOpt())
		defer client.Close()
		go worker.Forward(ctx, a.Storage, client, logger.Named("notifications"))
		logger.Info("listening for bucket notifications", zap.String("bucket", a.Storage.Bucket()))
	}

	server := asynq.NewServer(a.RedisOpt(), asynq.Config{
		Concurrency: cfg.ProcessingPool,
	})
	processor := worker.NewProcessor(a.Ingest, logger.Named("worker"))

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", zap.Int("concurrency", cfg.ProcessingPool))
	if err := server.Run(processor.Handler()); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
