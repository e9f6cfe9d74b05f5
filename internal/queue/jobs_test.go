package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/photosearch/internal/ingest"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestEnqueueIndex(t *testing.T) {
	client := &fakeEnqueuer{}
	batch := ingest.Batch{Records: []ingest.Record{ingest.NewRecord("b", "a%20photo.jpg")}}

	require.NoError(t, EnqueueIndex(context.Background(), client, batch))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, IndexPhotosTask, client.tasks[0].Type())

	decoded, err := DecodeIndexTask(client.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, batch, decoded)
}

func TestEnqueueIndexSkipsEmptyBatch(t *testing.T) {
	client := &fakeEnqueuer{}
	require.NoError(t, EnqueueIndex(context.Background(), client, ingest.Batch{}))
	assert.Empty(t, client.tasks)
}

func TestEnqueueIndexError(t *testing.T) {
	client := &fakeEnqueuer{err: errors.New("redis down")}
	batch := ingest.Batch{Records: []ingest.Record{ingest.NewRecord("b", "k")}}
	assert.ErrorContains(t, EnqueueIndex(context.Background(), client, batch), "redis down")
}

func TestDecodeIndexTaskInvalid(t *testing.T) {
	_, err := DecodeIndexTask(asynq.NewTask(IndexPhotosTask, []byte("{")))
	assert.Error(t, err)
}
