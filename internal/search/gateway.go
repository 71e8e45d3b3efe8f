package search

import (
	"context"
	"strings"
	"sync"

	"docsync/internal/document/model"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"
)

// ErrSuperseded is returned when a newer query was issued while this one was
// in flight. Its results were dropped.
var ErrSuperseded = apperror.ErrSuperseded

// Searcher is the external search capability. Result order is kept as is.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Gateway forwards queries to a Searcher and keeps the results of the latest
// query only.
type Gateway struct {
	searcher Searcher

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	query   string
	results []model.SearchResult
}

func NewGateway(s Searcher) *Gateway {
	return &Gateway{searcher: s, results: []model.SearchResult{}}
}

// Search runs query and makes its results the displayed ones, unless a newer
// query was issued before it resolved. Blank queries clear the results
// without calling the Searcher.
func (g *Gateway) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.mu.Lock()
	g.seq++
	seq := g.seq
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = cancel
	g.query = query
	if strings.TrimSpace(query) == "" {
		g.cancel = nil
		g.results = []model.SearchResult{}
		g.mu.Unlock()
		return []model.SearchResult{}, nil
	}
	g.mu.Unlock()

	results, err := g.searcher.Search(ctx, query)

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		logger.Sugar.Debugf("Dropping results for superseded query %q", query)
		return nil, ErrSuperseded
	}
	g.cancel = nil
	if err != nil {
		logger.Sugar.Errorf("Search for %q failed: %v", query, err)
		g.results = []model.SearchResult{}
		return nil, err
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	g.results = results
	return copyResults(results), nil
}

// Results returns the results of the latest resolved query.
func (g *Gateway) Results() []model.SearchResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyResults(g.results)
}

func (g *Gateway) Query() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.query
}

// Clear resets the query, as happens when a result is opened. Any in-flight
// query is superseded.
func (g *Gateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.query = ""
	g.results = []model.SearchResult{}
}

func copyResults(in []model.SearchResult) []model.SearchResult {
	out := make([]model.SearchResult, len(in))
	copy(out, in)
	return out
}
