package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/photosearch/internal/photo"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PhotoRepository stores photo documents in PostgreSQL. It is the document
// store used when the store driver is postgres.
type PhotoRepository struct {
	db DB
}

// NewPhotoRepository constructs a repository.
func NewPhotoRepository(db DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts doc as a new row. Rows are never updated.
func (r *PhotoRepository) Create(ctx context.Context, doc photo.Document) error {
	labels := doc.Labels
	if labels == nil {
		labels = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO photos (object_key, bucket, created_timestamp, labels)
		VALUES ($1,$2,$3,$4)
	`, doc.ObjectKey, doc.Bucket, doc.CreatedTimestamp, labels)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// Search returns photos whose labels overlap labels, oldest first, at most
// size rows.
func (r *PhotoRepository) Search(ctx context.Context, labels []string, size int) ([]photo.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT object_key, bucket, created_timestamp, labels
		FROM photos WHERE labels && $1
		ORDER BY id
		LIMIT $2
	`, labels, size)
	if err != nil {
		return nil, fmt.Errorf("select photos: %w", err)
	}
	defer rows.Close()
	docs := make([]photo.Document, 0, size)
	for rows.Next() {
		var doc photo.Document
		if err := rows.Scan(&doc.ObjectKey, &doc.Bucket, &doc.CreatedTimestamp, &doc.Labels); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return docs, nil
}
