package search

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// suggestionHitThreshold is the totalHits bound at or below which spell
// suggestions are offered
const suggestionHitThreshold = 5

// ResponseProcessor assembles the final search response: snippet
// extraction, lazily-consulted spell suggestions, expansion-term filtering
// against the live index.
type ResponseProcessor struct {
	executor     *index.Executor
	pool         *index.Pool
	fragmentSize int
	logger       arbor.ILogger
}

// NewResponseProcessor creates the response processor
func NewResponseProcessor(executor *index.Executor, pool *index.Pool, fragmentSize int, logger arbor.ILogger) *ResponseProcessor {
	if logger == nil {
		logger = common.GetLogger()
	}
	if fragmentSize <= 0 {
		fragmentSize = 200
	}
	return &ResponseProcessor{executor: executor, pool: pool, fragmentSize: fragmentSize, logger: logger}
}

// Process builds the response record from the executed page. parsed is the
// original pre-expansion query driving snippet extraction.
func (rp *ResponseProcessor) Process(ctx context.Context, req *models.SearchRequest, parsed query.Query,
	qr *QueryResult, page *models.PaginatedResult[models.Hit], facets []models.Facet) *models.SearchResponse {

	hits := page.Results
	if hits == nil {
		hits = []models.Hit{}
	}

	terms := queryTerms(parsed)
	for _, hit := range hits {
		if req.Highlighting() {
			if content, ok := hit[models.FieldContent].(string); ok && content != "" {
				hit[models.FieldContent] = rp.bestFragment(content, terms)
			}
		}
		// the access tags are private; only the public flag is exposed
		hit["isPublic"] = hasPublicTag(hit[models.FieldAccess])
		delete(hit, models.FieldAccess)
	}

	var suggestion []string
	if req.Query != "" && page.TotalHits <= suggestionHitThreshold {
		if sc := rp.pool.GetSpellChecker(); sc != nil {
			suggestion = sc.Suggest(req.Query)
		}
	}

	efoTerms := rp.filterByIndexPresence(ctx, qr.ExpandedEfoTerms)
	synonyms := rp.filterByIndexPresence(ctx, qr.ExpandedSynonyms)

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = models.SortRelevance
	}
	sortOrder := req.SortOrder
	if sortOrder == "" {
		sortOrder = models.SortDescending
	}

	page1 := page.Page
	if page1 < 1 {
		page1 = 1
	}

	var queryEcho *string
	if req.Highlighting() && req.Query != "" {
		q := req.Query
		queryEcho = &q
	}

	return &models.SearchResponse{
		Page:                  page1,
		PageSize:              page.PageSize,
		TotalHits:             page.TotalHits,
		IsTotalHitsExact:      page.IsTotalHitsExact,
		SortBy:                sortBy,
		SortOrder:             sortOrder,
		Suggestion:            suggestion,
		ExpandedEfoTerms:      efoTerms,
		ExpandedSynonyms:      synonyms,
		Query:                 queryEcho,
		Facets:                facets,
		Hits:                  hits,
		TooManyExpansionTerms: qr.TooManyExpansionTerms,
	}
}

// BuildErrorResponse is the §7 recovery path: an empty-hits response with
// default pagination
func (rp *ResponseProcessor) BuildErrorResponse(originalQuery string) *models.SearchResponse {
	return models.EmptySearchResponse(originalQuery)
}

// filterByIndexPresence drops expansion terms with zero document frequency
// in the submission content field. On I/O error the full set is returned.
func (rp *ResponseProcessor) filterByIndexPresence(ctx context.Context, terms []string) []string {
	if len(terms) == 0 {
		return []string{}
	}

	out := make([]string, 0, len(terms))
	for _, term := range terms {
		freq, err := rp.executor.TermFrequency(ctx, models.FieldContent, term, models.IndexSubmission)
		if err != nil {
			rp.logger.Warn().Err(err).Msg("Expansion term filter failed - returning unfiltered set")
			return terms
		}
		if freq > 0 {
			out = append(out, term)
		}
	}
	return out
}

// bestFragment returns a window of the configured width around the first
// query-term match; an empty match falls through to the original content
func (rp *ResponseProcessor) bestFragment(content string, terms []string) string {
	if len(content) <= rp.fragmentSize {
		return content
	}

	lower := strings.ToLower(content)
	best := -1
	for _, term := range terms {
		if term == "" {
			continue
		}
		if pos := strings.Index(lower, strings.ToLower(term)); pos >= 0 && (best == -1 || pos < best) {
			best = pos
		}
	}
	if best == -1 {
		return content
	}

	start := best - rp.fragmentSize/2
	if start < 0 {
		start = 0
	}
	end := start + rp.fragmentSize
	if end > len(content) {
		end = len(content)
		start = end - rp.fragmentSize
		if start < 0 {
			start = 0
		}
	}

	// align to word boundaries
	for start > 0 && content[start] != ' ' {
		start--
	}
	for end < len(content) && content[end] != ' ' {
		end++
	}

	fragment := strings.TrimSpace(content[start:end])
	if start > 0 {
		fragment = "... " + fragment
	}
	if end < len(content) {
		fragment += " ..."
	}
	return fragment
}

// hasPublicTag reports whether a stored access field carries the public
// tag
func hasPublicTag(v interface{}) bool {
	switch tags := v.(type) {
	case string:
		return strings.EqualFold(tags, "public")
	case []interface{}:
		for _, tag := range tags {
			if s, ok := tag.(string); ok && strings.EqualFold(s, "public") {
				return true
			}
		}
	}
	return false
}

// queryTerms collects the literal terms of a parsed query for snippet
// placement
func queryTerms(q query.Query) []string {
	var terms []string
	collectQueryTerms(q, &terms)
	return terms
}

func collectQueryTerms(q query.Query, into *[]string) {
	switch t := q.(type) {
	case *query.TermQuery:
		*into = append(*into, t.Term)
	case *query.PhraseQuery:
		*into = append(*into, strings.Join(t.Terms, " "))
	case *query.FuzzyQuery:
		*into = append(*into, t.Term)
	case *query.PrefixQuery:
		*into = append(*into, t.Prefix)
	case *query.WildcardQuery:
		*into = append(*into, strings.Trim(t.Wildcard, "*?"))
	case *query.ConjunctionQuery:
		for _, c := range t.Conjuncts {
			collectQueryTerms(c, into)
		}
	case *query.DisjunctionQuery:
		for _, c := range t.Disjuncts {
			collectQueryTerms(c, into)
		}
	case *query.BooleanQuery:
		if t.Must != nil {
			collectQueryTerms(t.Must, into)
		}
		if t.Should != nil {
			collectQueryTerms(t.Should, into)
		}
	}
}
