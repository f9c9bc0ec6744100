package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaytu-io/kaytu-catalog/pkg/opensearch"
)

var ErrIndexUnavailable = errors.New("search index is not available")

const defaultSearchSize = 10

type SearchEngine interface {
	Search(ctx context.Context, index string, query map[string]any) (*opensearch.SearchResponse, error)
}

// Searcher runs free text queries against the index of an entity type. The
// index is created on first use if needed.
type Searcher struct {
	manager *Manager
	engine  SearchEngine
}

func NewSearcher(manager *Manager, engine SearchEngine) *Searcher {
	return &Searcher{
		manager: manager,
		engine:  engine,
	}
}

type SearchRequest struct {
	EntityType string
	Query      string
	From       int
	Size       int
}

func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*opensearch.SearchResponse, error) {
	info, err := s.manager.IndexForEntityType(req.EntityType)
	if err != nil {
		return nil, err
	}

	if !s.manager.EnsureIndexExists(ctx, info.IndexType) {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, info.IndexInfo.IndexName)
	}

	return s.engine.Search(ctx, info.IndexInfo.IndexName, s.Query(req))
}

// Query builds the request body sent for req.
func (s *Searcher) Query(req SearchRequest) map[string]any {
	text := req.Query
	if text == "" {
		text = "*"
	}
	q := NewQueryStringQuery(text).
		Field("name", 10).
		Field("displayName", 10).
		Field("description", 2).
		Field("fullyQualifiedName", 1)
	q = s.manager.Resolver().CustomizeQuery(q)

	size := req.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	return map[string]any{
		"query": q.Source(),
		"from":  req.From,
		"size":  size,
	}
}
