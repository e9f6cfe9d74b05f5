package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "photosearch"

var (
	// IngestRecordsTotal counts processed trigger records by outcome
	// (indexed, write_failed).
	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Trigger records processed by the ingestion pipeline",
		},
		[]string{"outcome"},
	)

	// AdapterFailuresTotal counts external capability failures that were
	// degraded to an empty result.
	AdapterFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_failures_total",
			Help:      "External capability failures degraded to empty results",
		},
		[]string{"adapter"},
	)

	// QueriesTotal counts search queries by where their keywords came from
	// (disambiguator, tokenizer, none).
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Search queries by keyword source",
		},
		[]string{"source"},
	)

	// SearchResults observes how many results each match returned.
	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per matched query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50},
		},
	)
)

func init() {
	prometheus.MustRegister(IngestRecordsTotal, AdapterFailuresTotal, QueriesTotal, SearchResults)
}

// Adapter names used as label values.
const (
	AdapterDetection     = "detection"
	AdapterMetadata      = "metadata"
	AdapterDocumentStore = "document_store"
	AdapterDisambiguator = "disambiguator"
)
