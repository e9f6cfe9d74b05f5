// Package opensearch indexes and queries photo documents over the
// OpenSearch/Elasticsearch REST API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/photo"
)

var (
	// ErrNotConfigured is returned when no endpoint is set.
	ErrNotConfigured = errors.New("document store endpoint not configured")
	// ErrUnexpectedStatus wraps any non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected document store status")
)

// Config addresses one index.
type Config struct {
	Endpoint string
	Index    string
	User     string
	Password string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to a single OpenSearch index.
type Client struct {
	endpoint string
	index    string
	user     string
	password string
	http     *http.Client
	logger   *zap.Logger
}

// New builds a Client. An empty endpoint yields a client whose calls return
// ErrNotConfigured.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		index:    cfg.Index,
		user:     cfg.User,
		password: cfg.Password,
		http:     hc,
		logger:   logger,
	}
}

// Create indexes doc as a new document. 200 and 201 are success.
func (c *Client) Create(ctx context.Context, doc photo.Document) error {
	if c.endpoint == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	status, data, err := c.do(ctx, http.MethodPost, "/_doc", body)
	if err != nil {
		return err
	}
	c.logger.Debug("document store write",
		zap.Int("status", status),
		zap.String("object_key", doc.ObjectKey),
	)
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, status, truncate(data))
	}
	return nil
}

// Search returns documents carrying at least one of labels, in store order,
// at most size of them.
func (c *Client) Search(ctx context.Context, labels []string, size int) ([]photo.Document, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(BuildLabelQuery(labels, size))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	c.logger.Debug("document store query", zap.ByteString("body", body))
	status, data, err := c.do(ctx, http.MethodGet, "/_search", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, status, truncate(data))
	}
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	docs := make([]photo.Document, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	url := c.endpoint + "/" + c.index + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func truncate(data []byte) string {
	const limit = 300
	if len(data) > limit {
		return string(data[:limit])
	}
	return string(data)
}
