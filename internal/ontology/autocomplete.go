package ontology

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// Autocomplete limits
const (
	autocompleteMax      = 200
	fetchMultiplier      = 4
	defaultKeywordLimit  = 50
	efoTreeDefaultLimit  = 500
	ontologyFacetCeiling = 10000
)

// Autocomplete serves prefix matching over ontology terms and ontology
// tree navigation, optionally filtered to terms present in the submission
// index. Every entry point returns "" on blank input or I/O error.
type Autocomplete struct {
	executor      *index.Executor
	filterByIndex bool
	logger        arbor.ILogger
}

// NewAutocomplete creates the autocomplete service
func NewAutocomplete(executor *index.Executor, filterByIndex bool, logger arbor.ILogger) *Autocomplete {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Autocomplete{executor: executor, filterByIndex: filterByIndex, logger: logger}
}

// GetKeywords returns up to limit newline-separated matches for q. Primary
// term lines are "term|o|<id-if-has-children-else-empty>"; alternative
// term lines are "term|t|content".
func (a *Autocomplete) GetKeywords(ctx context.Context, q string, limit int) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	limit = clampLimit(limit)

	pattern := autocompletePattern(q)
	fetch := fetchMultiplier * limit
	if fetch > autocompleteMax {
		fetch = autocompleteMax
	}

	primaries, err := a.searchTerms(ctx, models.FieldTerm, pattern, fetch)
	if err != nil {
		a.logger.Warn().Err(err).Str("q", q).Msg("Autocomplete search failed")
		return ""
	}

	var lines []string
	for _, hit := range primaries {
		term, _ := hit.Fields[models.FieldTerm].(string)
		if term == "" || !a.presentInIndex(ctx, term) {
			continue
		}
		id, _ := hit.Fields[models.FieldEFOID].(string)
		hasChildren, _ := hit.Fields[models.FieldHasChildren].(bool)
		lines = append(lines, primaryLine(term, id, hasChildren))
		if len(lines) == limit {
			break
		}
	}

	// alternative terms fill the remaining slots
	if len(lines) < limit {
		alternatives, err := a.searchTerms(ctx, models.FieldAltTerm, pattern, fetch)
		if err != nil {
			a.logger.Warn().Err(err).Str("q", q).Msg("Autocomplete alternative-term search failed")
			return strings.Join(lines, "\n")
		}
		seen := make(map[string]bool, len(lines))
		for _, line := range lines {
			seen[strings.SplitN(line, "|", 2)[0]] = true
		}
		for _, hit := range alternatives {
			for _, alt := range stringValues(hit.Fields[models.FieldAltTerm]) {
				if !matchesPattern(alt, pattern) || seen[alt] || !a.presentInIndex(ctx, alt) {
					continue
				}
				seen[alt] = true
				lines = append(lines, fmt.Sprintf("%s|t|content", alt))
				if len(lines) == limit {
					break
				}
			}
			if len(lines) == limit {
				break
			}
		}
	}

	return strings.Join(lines, "\n")
}

// GetKeywordsWithCounts is the count mode: the same search, but each line
// carries the submission count of the term from the depth-encoded ontology
// facet
func (a *Autocomplete) GetKeywordsWithCounts(ctx context.Context, q string, limit int) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	limit = clampLimit(limit)

	counts, err := a.ontologyFacetCounts(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Ontology facet counts failed")
		return ""
	}

	pattern := autocompletePattern(q)
	fetch := fetchMultiplier * limit
	if fetch > autocompleteMax {
		fetch = autocompleteMax
	}

	hits, err := a.searchTerms(ctx, models.FieldTerm, pattern, fetch)
	if err != nil {
		a.logger.Warn().Err(err).Str("q", q).Msg("Autocomplete search failed")
		return ""
	}

	var lines []string
	for _, hit := range hits {
		term, _ := hit.Fields[models.FieldTerm].(string)
		count := counts[strings.ToLower(term)]
		if term == "" || count == 0 {
			continue
		}
		id, _ := hit.Fields[models.FieldEFOID].(string)
		lines = append(lines, fmt.Sprintf("%s|o|%s|%d", term, id, count))
		if len(lines) == limit {
			break
		}
	}

	return strings.Join(lines, "\n")
}

// GetEfoTree returns the direct children of an ontology node, sorted by
// label, preserving the ontology structure
func (a *Autocomplete) GetEfoTree(ctx context.Context, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}

	children, err := a.childNodes(ctx, id)
	if err != nil {
		a.logger.Warn().Err(err).Str("id", id).Msg("Ontology tree lookup failed")
		return ""
	}

	lines := make([]string, 0, len(children))
	for _, child := range children {
		lines = append(lines, primaryLine(child.term, child.id, child.hasChildren))
	}
	return strings.Join(lines, "\n")
}

// GetEfoTreeWithCounts returns the children of a node with live counts
// from the submission ontology facet
func (a *Autocomplete) GetEfoTreeWithCounts(ctx context.Context, id string, limit int) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if limit <= 0 {
		limit = efoTreeDefaultLimit
	}

	children, err := a.childNodes(ctx, id)
	if err != nil {
		a.logger.Warn().Err(err).Str("id", id).Msg("Ontology tree lookup failed")
		return ""
	}

	counts, err := a.ontologyFacetCounts(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Ontology facet counts failed")
		return ""
	}

	var lines []string
	for _, child := range children {
		count := counts[strings.ToLower(child.term)]
		if count == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s|o|%s|%d", child.term, child.id, count))
		if len(lines) == limit {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// childNode is one tree entry
type childNode struct {
	term        string
	id          string
	hasChildren bool
}

// childNodes fetches the direct children of a node id sorted by label
func (a *Autocomplete) childNodes(ctx context.Context, id string) ([]childNode, error) {
	tq := query.NewTermQuery(id)
	tq.SetField(models.FieldParent)

	req := bleve.NewSearchRequestOptions(tq, autocompleteMax*5, 0, false)
	req.Fields = []string{models.FieldTerm, models.FieldEFOID, models.FieldHasChildren}
	req.SortBy([]string{models.FieldTerm})

	res, err := a.executor.Raw(ctx, models.IndexEFO, req)
	if err != nil {
		return nil, err
	}

	out := make([]childNode, 0, len(res.Hits))
	for _, hit := range res.Hits {
		term, _ := hit.Fields[models.FieldTerm].(string)
		if term == "" {
			continue
		}
		nodeID, _ := hit.Fields[models.FieldEFOID].(string)
		hasChildren, _ := hit.Fields[models.FieldHasChildren].(bool)
		out = append(out, childNode{term: term, id: nodeID, hasChildren: hasChildren})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].term < out[j].term })
	return out, nil
}

// searchTerms runs the pattern over one ontology term field, sorted by
// term
func (a *Autocomplete) searchTerms(ctx context.Context, field, pattern string, fetch int) ([]*hitWrapper, error) {
	var q query.Query
	switch {
	case strings.HasSuffix(pattern, "*") && strings.Count(pattern, "*") == 1 && !strings.Contains(pattern, "?"):
		pq := query.NewPrefixQuery(strings.ToLower(strings.TrimSuffix(pattern, "*")))
		pq.SetField(field)
		q = pq
	case strings.ContainsAny(pattern, "*?"):
		wq := query.NewWildcardQuery(strings.ToLower(pattern))
		wq.SetField(field)
		q = wq
	default:
		tq := query.NewTermQuery(strings.ToLower(pattern))
		tq.SetField(field)
		q = tq
	}

	req := bleve.NewSearchRequestOptions(q, fetch, 0, false)
	req.Fields = []string{models.FieldTerm, models.FieldAltTerm, models.FieldEFOID, models.FieldHasChildren}
	req.SortBy([]string{models.FieldTerm})

	res, err := a.executor.Raw(ctx, models.IndexEFO, req)
	if err != nil {
		return nil, err
	}

	out := make([]*hitWrapper, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, &hitWrapper{Fields: hit.Fields})
	}
	return out, nil
}

// hitWrapper narrows a bleve hit to its stored fields
type hitWrapper struct {
	Fields map[string]interface{}
}

// ontologyFacetCounts aggregates the depth-encoded ontology facet of the
// submission index into term -> document count
func (a *Autocomplete) ontologyFacetCounts(ctx context.Context) (map[string]int, error) {
	req := bleve.NewSearchRequestOptions(query.NewMatchAllQuery(), 0, 0, false)
	req.AddFacet(models.FieldOntology, bleve.NewFacetRequest(models.FieldOntology, ontologyFacetCeiling))

	res, err := a.executor.Raw(ctx, models.IndexSubmission, req)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	fr, ok := res.Facets[models.FieldOntology]
	if !ok || fr.Terms == nil {
		return counts, nil
	}
	for _, t := range fr.Terms.Terms() {
		// labels are depth-encoded: "2/leukocyte"
		label := t.Term
		if idx := strings.Index(label, "/"); idx >= 0 {
			label = label[idx+1:]
		}
		counts[strings.ToLower(label)] += t.Count
	}
	return counts, nil
}

// presentInIndex applies the index-presence filter when enabled
func (a *Autocomplete) presentInIndex(ctx context.Context, term string) bool {
	if !a.filterByIndex {
		return true
	}
	freq, err := a.executor.TermFrequency(ctx, models.FieldContent, term, models.IndexSubmission)
	if err != nil {
		a.logger.Debug().Err(err).Str("term", term).Msg("Index-presence filter failed - keeping term")
		return true
	}
	return freq > 0
}

// autocompletePattern appends a trailing wildcard unless the query already
// carries explicit syntax
func autocompletePattern(q string) string {
	upper := strings.ToUpper(q)
	if strings.ContainsAny(q, `"*`) ||
		strings.Contains(upper, " AND ") || strings.Contains(upper, " OR ") {
		return strings.Trim(q, `"`)
	}
	return q + "*"
}

// matchesPattern checks a candidate term against the user pattern
// (case-insensitive prefix or exact match)
func matchesPattern(term, pattern string) bool {
	term = strings.ToLower(term)
	pattern = strings.ToLower(pattern)
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(term, strings.TrimSuffix(pattern, "*"))
	}
	return term == pattern
}

func primaryLine(term, id string, hasChildren bool) string {
	if hasChildren {
		return fmt.Sprintf("%s|o|%s", term, id)
	}
	return fmt.Sprintf("%s|o|", term)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultKeywordLimit
	}
	if limit > autocompleteMax {
		return autocompleteMax
	}
	return limit
}
