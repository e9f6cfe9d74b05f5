package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/config"
	"github.com/dharsanguruparan/photosearch/internal/query"
	"github.com/dharsanguruparan/photosearch/internal/queue"
	"github.com/dharsanguruparan/photosearch/internal/search"
)

type fakeMatcher struct {
	keywords []string
}

func (f *fakeMatcher) Match(_ context.Context, kw []string) []search.Result {
	f.keywords = kw
	return []search.Result{{ObjectKey: "cat.jpg", Bucket: "photos", CreatedTimestamp: "t", Labels: []string{"cat"}}}
}

type noKeywords struct{}

func (noKeywords) Keywords(context.Context, string, string) ([]string, error) { return nil, nil }

type fakeStore struct {
	key, contentType, labels, body string
	err                            error
}

func (f *fakeStore) Bucket() string { return "photos" }

func (f *fakeStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType, labels string) error {
	data, _ := io.ReadAll(r)
	f.key, f.contentType, f.labels, f.body = key, contentType, labels, string(data)
	return f.err
}

func (f *fakeStore) PresignURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "http://minio/" + bucket + "/" + key + "?sig=1", nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

// 1x1 transparent PNG.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89\x00\x00\x00\rIDATx\x9cc\xf8\x0f\x00\x00\x01\x01\x00\x05\x18\xd8N\x00\x00\x00\x00IEND\xaeB`\x82")

type fixture struct {
	handler http.Handler
	matcher *fakeMatcher
	store   *fakeStore
	queue   *fakeEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.MaxFileSize = 1024
	m := &fakeMatcher{}
	svc := query.NewService(noKeywords{}, m, zap.NewNop())
	store := &fakeStore{}
	q := &fakeEnqueuer{}
	return &fixture{
		handler: New(cfg, svc, store, q, zap.NewNop()).Routes(),
		matcher: m,
		store:   store,
		queue:   q,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestSearchGet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/search?q=Cat,+Sunset", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"cat", "sunset"}, f.matcher.keywords)

	var body query.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "cat.jpg", body.Results[0].ObjectKey)
}

func TestSearchMissingQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"results":[],"error":"Missing query 'q'"}`, rec.Body.String())
}

func TestSearchPostTranscript(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"inputTranscript":"trees"}`))

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"trees"}, f.matcher.keywords)
}

func TestSearchPostInvalidJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodOptions, "/photos", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "x-amz-meta-customLabels")
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPut, "/photos?objectKey=my%20cat.png", bytes.NewReader(pngBytes))
	req.Header.Set("x-amz-meta-customLabels", "Pet, Cute")

	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "my cat.png", f.store.key)
	assert.Equal(t, "image/png", f.store.contentType)
	assert.Equal(t, "Pet, Cute", f.store.labels)
	assert.Equal(t, string(pngBytes), f.store.body)
	assert.JSONEq(t, `{"bucket":"photos","objectKey":"my cat.png"}`, rec.Body.String())
}

func TestUploadRejections(t *testing.T) {
	t.Run("not an image", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodPut, "/photos?objectKey=a.txt", strings.NewReader("hello")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
	t.Run("empty", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodPut, "/photos?objectKey=a.png", http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("too large", func(t *testing.T) {
		f := newFixture(t)
		big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
		rec := f.do(httptest.NewRequest(http.MethodPut, "/photos?objectKey=a.png", bytes.NewReader(big)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("storage failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.err = errors.New("bucket missing")
		rec := f.do(httptest.NewRequest(http.MethodPut, "/photos?objectKey=a.png", bytes.NewReader(pngBytes)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPhotoURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/photos/url?objectKey=cat.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"http://minio/photos/cat.jpg?sig=1"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/photos/url", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	payload := `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"a%20photo.jpg"}}}]}`

	rec := f.do(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(payload)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.tasks, 1)
	batch, err := queue.DecodeIndexTask(f.queue.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "a%20photo.jpg", batch.Records[0].S3.Object.Key)
}

func TestEventsQueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")
	payload := `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"k"}}}]}`

	rec := f.do(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(payload)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
