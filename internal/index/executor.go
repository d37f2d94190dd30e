package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
)

// Pagination limits
const (
	MaxPageSize               = 1000
	MaxTotalDocsForPagination = 50000
	DefaultMaxResults         = 10000
)

// SearchCriteria selects the execution mode: offset pagination (Page,
// PageSize), cursor pagination (Sort plus optional SearchAfter), or a
// bounded non-paginated fetch (Limit). Pagination and limit are mutually
// exclusive; search-after requires a sort.
type SearchCriteria struct {
	Query       query.Query
	Page        int
	PageSize    int
	Sort        []string // bleve sort identifiers, e.g. "-release_time", "_score"
	Limit       int
	SearchAfter []string
}

// Executor runs a SearchCriteria over a named index, materialising stored
// fields for exactly the returned documents
type Executor struct {
	pool   *Pool
	logger arbor.ILogger
}

// NewExecutor creates a query executor over the pool
func NewExecutor(pool *Pool, logger arbor.ILogger) *Executor {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Executor{pool: pool, logger: logger}
}

// Search executes the criteria. The snapshot is acquired before the search
// and released on every exit path.
func (e *Executor) Search(ctx context.Context, indexName string, c SearchCriteria) (*models.PaginatedResult[models.Hit], error) {
	if c.Query == nil {
		return nil, models.NewInvalidArgument("search criteria has no query")
	}
	if c.Page > 0 && c.Limit > 0 {
		return nil, models.NewInvalidArgument("pagination and limit are mutually exclusive")
	}
	if len(c.SearchAfter) > 0 && len(c.Sort) == 0 {
		return nil, models.NewInvalidArgument("search-after requires a sort")
	}

	switch {
	case len(c.SearchAfter) > 0 || (c.Limit > 0 && len(c.Sort) > 0):
		return e.searchCursor(ctx, indexName, c)
	case c.Page > 0:
		return e.searchOffset(ctx, indexName, c)
	default:
		return e.searchBounded(ctx, indexName, c)
	}
}

// searchCursor returns up to limit results strictly after the cursor.
// No depth limit; lastCursor is set iff results are non-empty.
func (e *Executor) searchCursor(ctx context.Context, indexName string, c SearchCriteria) (*models.PaginatedResult[models.Hit], error) {
	limit := c.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	req := bleve.NewSearchRequestOptions(c.Query, limit, 0, false)
	req.Fields = []string{"*"}
	req.SortBy(c.Sort)
	if len(c.SearchAfter) > 0 {
		req.SearchAfter = c.SearchAfter
	}

	res, err := e.run(ctx, indexName, req)
	if err != nil {
		return nil, err
	}

	result := &models.PaginatedResult[models.Hit]{
		Results:          materialise(res),
		PageSize:         limit,
		TotalHits:        res.Total,
		IsTotalHitsExact: true,
	}
	if len(res.Hits) > 0 {
		result.LastCursor = res.Hits[len(res.Hits)-1].Sort
	}
	return result, nil
}

// searchOffset serves page/pageSize requests up to the deep-pagination
// bound; callers beyond it must switch to cursor mode
func (e *Executor) searchOffset(ctx context.Context, indexName string, c SearchCriteria) (*models.PaginatedResult[models.Hit], error) {
	if c.Page < 1 {
		return nil, models.NewInvalidArgument("page must be >= 1, got %d", c.Page)
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return nil, models.NewInvalidArgument("pageSize must be in [1, %d], got %d", MaxPageSize, c.PageSize)
	}
	if c.Page*c.PageSize > MaxTotalDocsForPagination {
		return nil, models.NewInvalidArgument(
			"Deep pagination beyond %d documents is not supported; use cursor pagination", MaxTotalDocsForPagination)
	}

	req := bleve.NewSearchRequestOptions(c.Query, c.PageSize, (c.Page-1)*c.PageSize, false)
	req.Fields = []string{"*"}
	if len(c.Sort) > 0 {
		req.SortBy(c.Sort)
	}

	res, err := e.run(ctx, indexName, req)
	if err != nil {
		return nil, err
	}

	return &models.PaginatedResult[models.Hit]{
		Results:          materialise(res),
		Page:             c.Page,
		PageSize:         c.PageSize,
		TotalHits:        res.Total,
		IsTotalHitsExact: true,
	}, nil
}

// searchBounded returns up to min(limit, DefaultMaxResults) results. When
// total hits exceed the cap the result is truncated with a warning.
func (e *Executor) searchBounded(ctx context.Context, indexName string, c SearchCriteria) (*models.PaginatedResult[models.Hit], error) {
	limit := c.Limit
	if limit <= 0 || limit > DefaultMaxResults {
		limit = DefaultMaxResults
	}

	req := bleve.NewSearchRequestOptions(c.Query, limit, 0, false)
	req.Fields = []string{"*"}

	res, err := e.run(ctx, indexName, req)
	if err != nil {
		return nil, err
	}

	if res.Total > uint64(limit) {
		e.logger.Warn().
			Str("index", indexName).
			Int64("total_hits", int64(res.Total)).
			Int("limit", limit).
			Msg("Non-paginated fetch truncated")
	}

	return &models.PaginatedResult[models.Hit]{
		Results:          materialise(res),
		PageSize:         limit,
		TotalHits:        res.Total,
		IsTotalHitsExact: true,
	}, nil
}

// run acquires a snapshot, executes the request and releases the snapshot
// on all exit paths
func (e *Executor) run(ctx context.Context, indexName string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	snap, err := e.pool.Acquire(indexName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := e.pool.Release(indexName, snap); rerr != nil {
			e.logger.Error().Err(rerr).Str("index", indexName).Msg("Snapshot release failed")
		}
	}()

	res, err := snap.Index().SearchInContext(ctx, req)
	if err != nil {
		return nil, models.NewSearchError("execute", err)
	}
	return res, nil
}

// Raw executes a prepared bleve request with snapshot acquire/release
// semantics; used by the facet engine and autocomplete
func (e *Executor) Raw(ctx context.Context, indexName string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return e.run(ctx, indexName, req)
}

// TermFrequency returns the document frequency of term (lowercased) in the
// given field of the named index
func (e *Executor) TermFrequency(ctx context.Context, field, term, indexName string) (int, error) {
	tq := query.NewTermQuery(strings.ToLower(term))
	tq.SetField(field)

	req := bleve.NewSearchRequestOptions(tq, 0, 0, false)
	res, err := e.run(ctx, indexName, req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

// materialise converts bleve hits to stored-field maps keyed by field name
// with the document id under "id"
func materialise(res *bleve.SearchResult) []models.Hit {
	hits := make([]models.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc := make(models.Hit, len(h.Fields)+1)
		for k, v := range h.Fields {
			doc[k] = v
		}
		doc[models.FieldID] = h.ID
		hits = append(hits, doc)
	}
	return hits
}

// String implements a debug representation of the criteria
func (c SearchCriteria) String() string {
	return fmt.Sprintf("page=%d pageSize=%d limit=%d sort=%v searchAfter=%v",
		c.Page, c.PageSize, c.Limit, c.Sort, c.SearchAfter)
}
