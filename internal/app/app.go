// Package app wires configuration into the services shared by the API
// server, the worker and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/config"
	"github.com/dharsanguruparan/photosearch/internal/database"
	"github.com/dharsanguruparan/photosearch/internal/detect"
	"github.com/dharsanguruparan/photosearch/internal/disambiguate"
	"github.com/dharsanguruparan/photosearch/internal/ingest"
	"github.com/dharsanguruparan/photosearch/internal/opensearch"
	"github.com/dharsanguruparan/photosearch/internal/query"
	"github.com/dharsanguruparan/photosearch/internal/repository"
	"github.com/dharsanguruparan/photosearch/internal/s3storage"
	"github.com/dharsanguruparan/photosearch/internal/search"
)

// DocumentStore both indexes and searches photo documents.
type DocumentStore interface {
	ingest.Writer
	search.Searcher
}

// App holds the constructed services. Close releases the store connections.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Storage   *s3storage.Storage
	Documents DocumentStore
	Query     *query.Service
	Ingest    *ingest.Service

	closers []func()
}

// New builds every service from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	a.Storage, err = s3storage.New(cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a.Documents, err = a.documentStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var detector ingest.LabelSource = ingest.NoLabels{}
	if cfg.Detection.Enabled {
		detector = detect.NewRekognitionFromConfig(awsCfg)
	} else {
		logger.Info("object detection disabled")
	}

	a.Query = query.NewService(
		NewDisambiguator(cfg, awsCfg, logger),
		search.NewMatcher(a.Documents, logger.Named("search")),
		logger.Named("query"),
	)
	a.Ingest = ingest.NewService(detector, a.Storage, a.Documents, logger.Named("ingest"))
	return a, nil
}

func (a *App) documentStore(ctx context.Context) (DocumentStore, error) {
	cfg := a.Config
	if cfg.Store.Driver == "postgres" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		return repository.NewPhotoRepository(pool), nil
	}
	if cfg.Store.Endpoint == "" {
		a.Logger.Warn("document store endpoint not configured, indexing and search will fail")
	}
	return opensearch.New(opensearch.Config{
		Endpoint: cfg.Store.Endpoint,
		Index:    cfg.Store.Index,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Logger:   a.Logger.Named("opensearch"),
	}), nil
}

// NewDisambiguator selects the slot extractor named by the config.
func NewDisambiguator(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) query.Disambiguator {
	logger = logger.Named("disambiguate")
	switch cfg.Disambiguator.Provider {
	case "openai":
		return disambiguate.NewOpenAI(disambiguate.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, logger)
	case "none":
		return disambiguate.Disabled{}
	default:
		return disambiguate.NewLexFromConfig(awsCfg, disambiguate.LexConfig{
			BotID:      cfg.Lex.BotID,
			BotAliasID: cfg.Lex.BotAliasID,
			LocaleID:   cfg.Lex.LocaleID,
		}, logger)
	}
}

// RedisOpt addresses the asynq broker.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return RedisOpt(a.Config)
}

// RedisOpt addresses the asynq broker described by cfg.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// Close releases open connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
