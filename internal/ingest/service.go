// Package ingest turns object-created notifications into indexed photo
// documents.
package ingest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/label"
	"github.com/dharsanguruparan/photosearch/internal/metrics"
	"github.com/dharsanguruparan/photosearch/internal/photo"
	"github.com/dharsanguruparan/photosearch/internal/s3storage"
)

// LabelSource detects labels for a stored object.
type LabelSource interface {
	Labels(ctx context.Context, bucket, key string) ([]string, error)
}

// MetadataSource returns an object's user metadata with lowercase keys.
type MetadataSource interface {
	Metadata(ctx context.Context, bucket, key string) (map[string]string, error)
}

// Writer persists a new document.
type Writer interface {
	Create(ctx context.Context, doc photo.Document) error
}

// NoLabels is the label source used when detection is disabled.
type NoLabels struct{}

// Labels returns nothing.
func (NoLabels) Labels(context.Context, string, string) ([]string, error) {
	return nil, nil
}

// Response is the fixed envelope returned for every batch.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Service runs the ingestion pipeline.
type Service struct {
	detector LabelSource
	meta     MetadataSource
	writer   Writer
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(detector LabelSource, meta MetadataSource, writer Writer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		detector: detector,
		meta:     meta,
		writer:   writer,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process indexes every record of batch in order. A failing record never
// stops its siblings and the response is always the success envelope.
func (s *Service) Process(ctx context.Context, batch Batch) Response {
	for _, rec := range batch.Records {
		s.processRecord(ctx, rec)
	}
	return Response{StatusCode: http.StatusOK, Body: "OK"}
}

func (s *Service) processRecord(ctx context.Context, rec Record) {
	ref := photo.Ref{Bucket: rec.S3.Bucket.Name, Key: rec.S3.Object.Key}
	if key, err := decodeKey(ref.Key); err != nil {
		s.logger.Warn("object key is not URL-encoded, using as is", zap.String("key", ref.Key), zap.Error(err))
	} else {
		ref.Key = key
	}
	log := s.logger.With(zap.String("bucket", ref.Bucket), zap.String("key", ref.Key))
	log.Info("processing photo")

	detected := s.detectedLabels(ctx, ref, log)
	declared := s.declaredLabels(ctx, ref, log)
	doc := photo.New(ref, s.now(), label.Merge(detected, declared))

	if err := s.writer.Create(ctx, doc); err != nil {
		metrics.IngestRecordsTotal.WithLabelValues("write_failed").Inc()
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.AdapterDocumentStore).Inc()
		log.Error("index photo failed", zap.Error(err))
		return
	}
	metrics.IngestRecordsTotal.WithLabelValues("indexed").Inc()
	log.Info("photo indexed", zap.Strings("labels", doc.Labels))
}

func (s *Service) detectedLabels(ctx context.Context, ref photo.Ref, log *zap.Logger) []string {
	labels, err := s.detector.Labels(ctx, ref.Bucket, ref.Key)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.AdapterDetection).Inc()
		log.Error("label detection failed", zap.Error(err))
		return nil
	}
	log.Debug("detected labels", zap.Strings("labels", labels))
	return labels
}

func (s *Service) declaredLabels(ctx context.Context, ref photo.Ref, log *zap.Logger) []string {
	meta, err := s.meta.Metadata(ctx, ref.Bucket, ref.Key)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.AdapterMetadata).Inc()
		log.Error("read metadata failed", zap.Error(err))
		return nil
	}
	labels := label.Tokenize(meta[s3storage.CustomLabelsKey])
	log.Debug("declared labels", zap.Strings("labels", labels))
	return labels
}
