// Package search matches keyword sets against the document store.
package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/label"
	"github.com/dharsanguruparan/photosearch/internal/metrics"
	"github.com/dharsanguruparan/photosearch/internal/photo"
)

// MaxResults caps every result list.
const MaxResults = 50

// Searcher answers "any of these labels" queries in store order.
type Searcher interface {
	Search(ctx context.Context, labels []string, size int) ([]photo.Document, error)
}

// Result is the projection of a photo returned to clients.
type Result struct {
	ObjectKey        string   `json:"objectKey"`
	Bucket           string   `json:"bucket"`
	CreatedTimestamp string   `json:"createdTimestamp"`
	Labels           []string `json:"labels"`
}

// Matcher turns a keyword set into a store query and projects the hits.
type Matcher struct {
	store  Searcher
	logger *zap.Logger
}

// NewMatcher constructs a Matcher.
func NewMatcher(store Searcher, logger *zap.Logger) *Matcher {
	return &Matcher{store: store, logger: logger}
}

// Match returns photos carrying at least one keyword. No keywords matches
// nothing and never reaches the store. Store failures yield no results.
func (m *Matcher) Match(ctx context.Context, keywords []string) []Result {
	keywords = label.Dedup(keywords)
	if len(keywords) == 0 {
		return []Result{}
	}
	docs, err := m.store.Search(ctx, keywords, MaxResults)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.AdapterDocumentStore).Inc()
		m.logger.Error("search failed", zap.Strings("keywords", keywords), zap.Error(err))
		return []Result{}
	}
	if len(docs) > MaxResults {
		docs = docs[:MaxResults]
	}
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, project(d))
	}
	metrics.SearchResults.Observe(float64(len(results)))
	return results
}

func project(d photo.Document) Result {
	labels := d.Labels
	if labels == nil {
		labels = []string{}
	}
	return Result{
		ObjectKey:        d.ObjectKey,
		Bucket:           d.Bucket,
		CreatedTimestamp: d.CreatedTimestamp,
		Labels:           labels,
	}
}
