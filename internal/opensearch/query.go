package opensearch

import (
	"github.com/dharsanguruparan/photosearch/internal/photo"
)

// Query is the search request body.
type Query struct {
	Size  int       `json:"size"`
	Query QueryBody `json:"query"`
}

// QueryBody wraps the bool clause.
type QueryBody struct {
	Bool BoolQuery `json:"bool"`
}

// BoolQuery matches when at least MinimumShouldMatch clauses match.
type BoolQuery struct {
	Should             []TermsClause `json:"should"`
	MinimumShouldMatch int           `json:"minimum_should_match"`
}

// TermsClause is {"terms": {field: values}}.
type TermsClause struct {
	Terms map[string][]string `json:"terms"`
}

// Fields holding the labels: the exact keyword sub-field and the analyzed
// text field.
const (
	KeywordField  = "labels.keyword"
	AnalyzedField = "labels"
)

// BuildLabelQuery matches any document whose labels contain at least one of
// labels in either field.
func BuildLabelQuery(labels []string, size int) Query {
	return Query{
		Size: size,
		Query: QueryBody{Bool: BoolQuery{
			Should: []TermsClause{
				{Terms: map[string][]string{KeywordField: labels}},
				{Terms: map[string][]string{AnalyzedField: labels}},
			},
			MinimumShouldMatch: 1,
		}},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source photo.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
