package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/ingest"
	"github.com/dharsanguruparan/photosearch/internal/queue"
)

// Pipeline indexes one notification batch.
type Pipeline interface {
	Process(ctx context.Context, batch ingest.Batch) ingest.Response
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(pipeline Pipeline, logger *zap.Logger) *Processor {
	return &Processor{pipeline: pipeline, logger: logger}
}

// Handler registers the index job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.IndexPhotosTask, p.handleIndex)
	return mux
}

func (p *Processor) handleIndex(ctx context.Context, task *asynq.Task) error {
	batch, err := queue.DecodeIndexTask(task)
	if err != nil {
		p.logger.Error("dropping malformed index task", zap.Error(err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	resp := p.pipeline.Process(ctx, batch)
	p.logger.Info("batch processed",
		zap.Int("records", len(batch.Records)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// Notifications is a source of bucket notifications.
type Notifications interface {
	Listen(ctx context.Context) <-chan notification.Info
}

// Forward enqueues every object-created notification from src until ctx is
// cancelled or the stream closes. Stream errors are logged and skipped.
func Forward(ctx context.Context, src Notifications, client queue.Enqueuer, logger *zap.Logger) {
	for info := range src.Listen(ctx) {
		if info.Err != nil {
			logger.Error("bucket notification error", zap.Error(info.Err))
			continue
		}
		batch := ingest.FromNotification(info)
		if err := queue.EnqueueIndex(ctx, client, batch); err != nil {
			logger.Error("enqueue notification failed", zap.Int("records", len(batch.Records)), zap.Error(err))
		}
	}
}
