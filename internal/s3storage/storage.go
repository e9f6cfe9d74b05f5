package s3storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/dharsanguruparan/photosearch/internal/config"
)

// CustomLabelsKey is the user metadata field carrying uploader labels. S3
// returns user metadata keys without the x-amz-meta- prefix; Metadata
// lowercases them.
const CustomLabelsKey = "customlabels"

// ObjectCreatedEvents are the notifications that trigger ingestion.
var ObjectCreatedEvents = []string{string(notification.ObjectCreatedAll)}

type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
	ListenBucketNotification(ctx context.Context, bucket, prefix, suffix string, events []string) <-chan notification.Info
}

// Storage wraps MinIO/S3 interactions for uploaded photos.
type Storage struct {
	client objectAPI
	bucket string
	region string
}

// New creates a MinIO client from the S3 settings.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Bucket returns the bucket uploads are written to.
func (s *Storage) Bucket() string {
	return s.bucket
}

// EnsureBucket makes sure the photo bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores a photo in the photo bucket, attaching customLabels as user
// metadata when present.
func (s *Storage) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType, customLabels string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if customLabels != "" {
		opts.UserMetadata = map[string]string{"customLabels": customLabels}
	}
	if _, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload object %s: %w", objectKey, err)
	}
	return nil
}

// Metadata returns the user metadata of bucket/key with lowercase keys.
func (s *Storage) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}
	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[strings.ToLower(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"))] = v
	}
	return meta, nil
}

// PresignURL returns a signed GET URL for bucket/key.
func (s *Storage) PresignURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

// Listen streams object-created notifications for the photo bucket until ctx
// is cancelled.
func (s *Storage) Listen(ctx context.Context) <-chan notification.Info {
	return s.client.ListenBucketNotification(ctx, s.bucket, "", "", ObjectCreatedEvents)
}
