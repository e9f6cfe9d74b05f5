package ingest

import (
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// Batch is an S3 event notification: one or more object-created records.
type Batch struct {
	Records []Record `json:"Records"`
}

// Record identifies one uploaded object. Key is URL-encoded as delivered.
type Record struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// NewRecord builds a record from a bucket and an encoded key.
func NewRecord(bucket, encodedKey string) Record {
	var r Record
	r.S3.Bucket.Name = bucket
	r.S3.Object.Key = encodedKey
	return r
}

// FromNotification converts a minio bucket notification into a Batch.
func FromNotification(info notification.Info) Batch {
	b := Batch{Records: make([]Record, 0, len(info.Records))}
	for _, ev := range info.Records {
		b.Records = append(b.Records, NewRecord(ev.S3.Bucket.Name, ev.S3.Object.Key))
	}
	return b
}

// decodeKey percent-decodes an object key, turning '+' into a space.
func decodeKey(key string) (string, error) {
	return url.QueryUnescape(key)
}
