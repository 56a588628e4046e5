package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/metrics"
)

// MaxResults is the retrieval window. Filters run after it is cut, so a
// filtered query can return fewer results even when more matching documents
// exist past the window.
const MaxResults = 50

// ErrInvalidQuery is returned for an empty or malformed query.
var ErrInvalidQuery = errors.New("invalid query")

// Request is a query against one index directory.
type Request struct {
	Query    string   `json:"query"`
	Filters  *Filters `json:"filters,omitempty"`
	IndexDir string   `json:"index_dir"`
}

// Engine answers queries. When the registry has a writer open for the
// requested directory the live handle is used; otherwise a read-only handle
// is opened per query.
type Engine struct {
	registry *indexstore.Registry
}

// NewEngine creates an engine. registry may be nil.
func NewEngine(registry *indexstore.Registry) *Engine {
	return &Engine{registry: registry}
}

// Query runs req and returns up to MaxResults hits by descending score, with
// filters applied afterwards.
func (e *Engine) Query(ctx context.Context, req Request) (results []domain.SearchResult, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveQuery(time.Since(start), err)
	}()

	q, err := parseQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if err := req.Filters.validate(); err != nil {
		return nil, err
	}

	index, release, err := e.registry.OpenReader(req.IndexDir)
	if err != nil {
		return nil, err
	}
	defer release()

	sreq := bleve.NewSearchRequestOptions(q, MaxResults, 0, false)
	sreq.Fields = indexstore.StoredFields()

	res, err := index.SearchInContext(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results = make([]domain.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := toResult(hit)
		if !req.Filters.accept(r) {
			slog.Debug("Result filtered", "path", r.Path)
			continue
		}
		results = append(results, r)
	}

	slog.Debug("Query done",
		"query", req.Query,
		"total", res.Total,
		"returned", len(results),
		"took", res.Took)
	return results, nil
}

func parseQuery(s string) (*query.QueryStringQuery, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	q := bleve.NewQueryStringQuery(s)
	if _, err := q.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return q, nil
}

func toResult(hit *bsearch.DocumentMatch) domain.SearchResult {
	r := domain.SearchResult{
		Path:  hit.ID,
		Score: hit.Score,
	}
	if v, ok := hit.Fields[domain.FieldPath].(string); ok {
		r.Path = v
	}
	if v, ok := hit.Fields[domain.FieldName].(string); ok {
		r.Name = v
	}
	if v, ok := hit.Fields[domain.FieldExt].(string); ok {
		r.Ext = v
	}
	// Stored numerics come back as float64.
	if v, ok := hit.Fields[domain.FieldSize].(float64); ok {
		size := uint64(v)
		r.Size = &size
	}
	if v, ok := hit.Fields[domain.FieldModifiedTS].(float64); ok {
		ts := int64(v)
		r.ModifiedTS = &ts
	}
	if v, ok := hit.Fields[domain.FieldSummary].(string); ok {
		r.Summary = &v
	}
	return r
}
