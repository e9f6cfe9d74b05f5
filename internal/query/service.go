// Package query resolves a free-text query to a keyword set and returns the
// matching photos.
package query

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/label"
	"github.com/dharsanguruparan/photosearch/internal/metrics"
	"github.com/dharsanguruparan/photosearch/internal/search"
)

// MissingQueryError is the client-visible message for an empty query.
const MissingQueryError = "Missing query 'q'"

// Disambiguator extracts keywords from natural-language text. An empty result
// with a nil error means "nothing recognized".
type Disambiguator interface {
	Keywords(ctx context.Context, text, sessionID string) ([]string, error)
}

// Matcher finds photos for a keyword set.
type Matcher interface {
	Match(ctx context.Context, keywords []string) []search.Result
}

// Event carries the query string in one of three places, checked in order:
// queryStringParameters.q, q, inputTranscript.
type Event struct {
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Q                     string            `json:"q,omitempty"`
	InputTranscript       string            `json:"inputTranscript,omitempty"`
}

// Text returns the trimmed query string from the first populated source.
func (e Event) Text() string {
	q := e.QueryStringParameters["q"]
	if q == "" {
		q = e.Q
	}
	if q == "" {
		q = e.InputTranscript
	}
	return strings.TrimSpace(q)
}

// Body is the JSON payload of every response.
type Body struct {
	Results []search.Result `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// Response is the transport-neutral envelope.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       Body              `json:"body"`
}

// Service runs the query pipeline. It holds no per-request state.
type Service struct {
	disambiguator Disambiguator
	matcher       Matcher
	logger        *zap.Logger
}

// NewService constructs a Service.
func NewService(d Disambiguator, m Matcher, logger *zap.Logger) *Service {
	return &Service{disambiguator: d, matcher: m, logger: logger}
}

// Handle answers one query. Only a missing query is a client error; every
// downstream failure degrades to fewer or no results.
func (s *Service) Handle(ctx context.Context, ev Event, sessionID string) Response {
	q := ev.Text()
	if q == "" {
		return respond(http.StatusBadRequest, Body{Results: []search.Result{}, Error: MissingQueryError})
	}
	keywords := s.Keywords(ctx, q, sessionID)
	return respond(http.StatusOK, Body{Results: s.matcher.Match(ctx, keywords)})
}

// Keywords resolves q with the disambiguator and falls back to the tokenizer
// when it yields nothing.
func (s *Service) Keywords(ctx context.Context, q, sessionID string) []string {
	keywords, err := s.disambiguator.Keywords(ctx, q, sessionID)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.AdapterDisambiguator).Inc()
		s.logger.Error("disambiguation failed", zap.String("session_id", sessionID), zap.Error(err))
		keywords = nil
	}
	source := "disambiguator"
	if len(keywords) == 0 {
		keywords = label.Tokenize(q)
		source = "tokenizer"
	}
	if len(keywords) == 0 {
		source = "none"
	}
	metrics.QueriesTotal.WithLabelValues(source).Inc()
	s.logger.Info("query resolved",
		zap.String("query", q),
		zap.String("source", source),
		zap.Strings("keywords", keywords),
	)
	return keywords
}

func respond(status int, body Body) Response {
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: body,
	}
}
