// Package photo holds the document shape shared by ingestion and search.
package photo

import (
	"time"

	"github.com/dharsanguruparan/photosearch/internal/label"
)

// TimestampLayout renders createdTimestamp as ISO-8601 UTC with microseconds.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Ref identifies an object in the object store.
type Ref struct {
	Bucket string
	Key    string
}

// Document is the write-once record indexed for every ingested photo.
type Document struct {
	ObjectKey        string   `json:"objectKey"`
	Bucket           string   `json:"bucket"`
	CreatedTimestamp string   `json:"createdTimestamp"`
	Labels           []string `json:"labels"`
}

// New builds a Document for ref. Labels are re-canonicalized so the stored
// set is always sorted, unique and lowercase.
func New(ref Ref, created time.Time, labels []string) Document {
	return Document{
		ObjectKey:        ref.Key,
		Bucket:           ref.Bucket,
		CreatedTimestamp: created.UTC().Format(TimestampLayout),
		Labels:           label.Merge(labels, nil),
	}
}
