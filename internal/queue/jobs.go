package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/photosearch/internal/ingest"
)

const (
	// IndexPhotosTask is scheduled for each object-created notification batch.
	IndexPhotosTask = "photo:index"
)

// Enqueuer is the subset of asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewIndexTask serializes batch into an index task. Ingestion never retries;
// a failed record is final for that notification.
func NewIndexTask(batch ingest.Batch) (*asynq.Task, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return asynq.NewTask(IndexPhotosTask, data, asynq.MaxRetry(0)), nil
}

// EnqueueIndex enqueues a batch for the worker. Empty batches are dropped.
func EnqueueIndex(ctx context.Context, client Enqueuer, batch ingest.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}
	task, err := NewIndexTask(batch)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue index task: %w", err)
	}
	return nil
}

// DecodeIndexTask reads the batch back out of a task payload.
func DecodeIndexTask(task *asynq.Task) (ingest.Batch, error) {
	var batch ingest.Batch
	if err := json.Unmarshal(task.Payload(), &batch); err != nil {
		return ingest.Batch{}, fmt.Errorf("decode payload: %w", err)
	}
	return batch, nil
}
