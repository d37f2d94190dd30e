package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/auth"
	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// defaultPageSize applies when the request carries no explicit pageSize
const defaultPageSize = 20

// Service is the search facade: parse, expand, secure, drill down,
// execute and post-process. Pipeline failures after parsing downgrade to
// the empty-hits error response; only invalid input surfaces as an error.
type Service struct {
	parser   *Parser
	expander *Expander
	facets   *FacetEngine
	executor *index.Executor
	response *ResponseProcessor
	registry *schema.Registry
	logger   arbor.ILogger
}

// NewService wires the query pipeline
func NewService(pool *index.Pool, registry *schema.Registry, cfg *common.Config, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}

	executor := index.NewExecutor(pool, logger)
	svc := &Service{
		parser:   NewParser(registry),
		expander: NewExpander(executor, registry, logger),
		facets:   NewFacetEngine(executor, registry, logger),
		executor: executor,
		response: NewResponseProcessor(executor, pool, cfg.Search.HighlightFragmentSize, logger),
		registry: registry,
		logger:   logger,
	}

	pool.SetSpellChecker(NewSuggester(pool, cfg.Search.SuggestionCount, logger))

	return svc
}

// Search executes one search request end-to-end. InvalidQuery and
// InvalidArgument errors propagate for the transport layer to map to 400;
// anything else produces the best-effort error response.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	collection := req.Collection
	if collection == "" {
		collection = schema.PublicCollection
	}

	parsed, err := s.parser.Parse(req.Query, collection, req.Fields)
	if err != nil {
		return nil, err
	}

	qr := s.expander.Expand(ctx, parsed)

	secured := Secure(ctx, qr.Query)
	drill := s.facets.BuildDrillDown(secured, req.Facets)

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	criteria := index.SearchCriteria{
		Query:    drill,
		Page:     page,
		PageSize: pageSize,
		Sort:     sortIdentifiers(s.registry, req.SortBy, req.SortOrder),
	}

	result, err := s.executor.Search(ctx, models.IndexSubmission, criteria)
	if err != nil {
		var invalidArg *models.InvalidArgumentError
		if errors.As(err, &invalidArg) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("query", req.Query).Msg("Search execution failed")
		return s.response.BuildErrorResponse(req.Query), nil
	}

	principal := auth.FromContext(ctx)
	authorised := principal != nil && principal.SuperUser

	facetList, err := s.facets.Counts(ctx, drill, collection, req.Facets, req.FacetLimit, authorised)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Facet computation failed - returning hits without facets")
		facetList = nil
	}

	return s.response.Process(ctx, req, parsed, qr, result, facetList), nil
}

// TermFrequency exposes document-frequency checks to collaborating
// services
func (s *Service) TermFrequency(ctx context.Context, field, term, indexName string) (int, error) {
	return s.executor.TermFrequency(ctx, field, term, indexName)
}

// sortIdentifiers maps the request sort to bleve sort identifiers. The
// relevance sort orders by score; field sorts require a sortable
// descriptor and fall back to relevance otherwise.
func sortIdentifiers(registry *schema.Registry, sortBy, sortOrder string) []string {
	descending := sortOrder == "" || sortOrder == models.SortDescending

	if sortBy == "" || sortBy == models.SortRelevance {
		if descending {
			return []string{"-_score", "_id"}
		}
		return []string{"_score", "_id"}
	}

	desc := registry.Get(sortBy)
	if desc == nil || !desc.Sortable {
		return []string{"-_score", "_id"}
	}

	if descending {
		return []string{fmt.Sprintf("-%s", sortBy), "_id"}
	}
	return []string{sortBy, "_id"}
}
