package search

import (
	"context"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// Expansion limits
const (
	MaxExpansionTerms   = 100
	expansionFetchLimit = 16
)

// QueryResult is the parsed query plus its expansion metadata
type QueryResult struct {
	Query                 query.Query
	ExpandedEfoTerms      []string
	ExpandedSynonyms      []string
	TooManyExpansionTerms bool
}

// Expander recursively rewrites a query, replacing term and phrase leaves
// on expandable fields with a disjunction of the original term plus
// ontology synonyms and related terms. Expansion failures downgrade to
// "no expansion"; a search never fails because expansion failed.
type Expander struct {
	executor *index.Executor
	registry *schema.Registry
	logger   arbor.ILogger
}

// NewExpander creates a query expander backed by the ontology index
func NewExpander(executor *index.Executor, registry *schema.Registry, logger arbor.ILogger) *Expander {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Expander{executor: executor, registry: registry, logger: logger}
}

// lookupResult carries the expansion terms found for one leaf
type lookupResult struct {
	efoTerms map[string]struct{}
	synonyms map[string]struct{}
}

// Expand rewrites q and collects the combined expansion-term sets
func (x *Expander) Expand(ctx context.Context, q query.Query) *QueryResult {
	result := &QueryResult{
		ExpandedEfoTerms: []string{},
		ExpandedSynonyms: []string{},
	}

	expandable := x.registry.ExpandedFields()
	efoSet := make(map[string]struct{})
	synSet := make(map[string]struct{})

	result.Query = x.expand(ctx, q, expandable, efoSet, synSet, result)

	result.ExpandedEfoTerms = sortedKeys(efoSet)
	result.ExpandedSynonyms = sortedKeys(synSet)
	return result
}

// expand applies the recursion rules. Boolean composites expand each
// clause; expandable leaves are looked up in the ontology expansion field;
// everything else is returned unchanged.
func (x *Expander) expand(ctx context.Context, q query.Query, expandable map[string]bool,
	efoSet, synSet map[string]struct{}, result *QueryResult) query.Query {

	switch t := q.(type) {
	case *query.MatchAllQuery, *query.PrefixQuery, *query.WildcardQuery:
		return q

	case *query.ConjunctionQuery:
		out := query.NewConjunctionQuery(nil)
		for _, child := range t.Conjuncts {
			out.AddQuery(x.expand(ctx, child, expandable, efoSet, synSet, result))
		}
		return out

	case *query.DisjunctionQuery:
		out := query.NewDisjunctionQuery(nil)
		for _, child := range t.Disjuncts {
			out.AddQuery(x.expand(ctx, child, expandable, efoSet, synSet, result))
		}
		return out

	case *query.BooleanQuery:
		must := t.Must
		should := t.Should
		if must != nil {
			must = x.expand(ctx, must, expandable, efoSet, synSet, result)
		}
		if should != nil {
			should = x.expand(ctx, should, expandable, efoSet, synSet, result)
		}
		out := query.NewBooleanQuery(nil, nil, nil)
		if must != nil {
			out.AddMust(must)
		}
		if should != nil {
			out.AddShould(should)
		}
		if t.MustNot != nil {
			// negated clauses are never broadened
			if mn, ok := t.MustNot.(*query.DisjunctionQuery); ok {
				out.AddMustNot(mn.Disjuncts...)
			} else {
				out.AddMustNot(t.MustNot)
			}
		}
		return out

	case *query.TermQuery:
		return x.expandLeaf(ctx, q, t.FieldVal, t.Term, expandable, efoSet, synSet, result)

	case *query.PhraseQuery:
		return x.expandLeaf(ctx, q, t.Field, strings.Join(t.Terms, " "), expandable, efoSet, synSet, result)

	case *query.FuzzyQuery:
		return x.expandLeaf(ctx, q, t.FieldVal, t.Term, expandable, efoSet, synSet, result)

	case *query.TermRangeQuery:
		return x.expandLeaf(ctx, q, t.FieldVal, t.Min, expandable, efoSet, synSet, result)

	default:
		return q
	}
}

// expandLeaf looks the leaf up in the ontology expansion field and builds
// the broadened disjunction. The original leaf always survives unchanged.
func (x *Expander) expandLeaf(ctx context.Context, original query.Query, field, term string,
	expandable map[string]bool, efoSet, synSet map[string]struct{}, result *QueryResult) query.Query {

	if field == "" || !expandable[field] || term == "" {
		return original
	}

	lookup, err := x.lookup(ctx, original, term)
	if err != nil {
		x.logger.Debug().Err(err).Str("term", term).Msg("Query expansion lookup failed - keeping original query")
		return original
	}
	if lookup == nil || (len(lookup.efoTerms) == 0 && len(lookup.synonyms) == 0) {
		return original
	}

	if len(lookup.efoTerms)+len(lookup.synonyms) > MaxExpansionTerms ||
		len(efoSet)+len(synSet)+len(lookup.efoTerms)+len(lookup.synonyms) > MaxExpansionTerms {
		result.TooManyExpansionTerms = true
		return original
	}

	clauses := []query.Query{original}
	lowerTerm := strings.ToLower(term)

	appendTerms := func(terms map[string]struct{}, into map[string]struct{}) {
		for _, expTerm := range sortedKeys(terms) {
			if strings.ToLower(expTerm) == lowerTerm {
				continue // redundant: equals the original
			}
			clauses = append(clauses, leafFor(field, expTerm))
			into[expTerm] = struct{}{}
		}
	}
	appendTerms(lookup.synonyms, synSet)
	appendTerms(lookup.efoTerms, efoSet)

	if len(clauses) == 1 {
		return original
	}
	return query.NewDisjunctionQuery(clauses)
}

// leafFor reconstitutes an expansion term as a term query on the original
// field, or a phrase query when the term contains whitespace
func leafFor(field, term string) query.Query {
	lower := strings.ToLower(term)
	if strings.ContainsAny(lower, " \t") {
		return query.NewPhraseQuery(strings.Fields(lower), field)
	}
	tq := query.NewTermQuery(lower)
	tq.SetField(field)
	return tq
}

// lookup converts the leaf into a query over the ontology expansion field,
// preserving the leaf's query type and parameters, and collects the stored
// synonyms and related terms of up to expansionFetchLimit matches
func (x *Expander) lookup(ctx context.Context, original query.Query, term string) (*lookupResult, error) {
	// multi-word phrases are concatenated into a single lookup token
	token := strings.ToLower(strings.Join(strings.Fields(term), " "))

	var lookupQuery query.Query
	switch t := original.(type) {
	case *query.FuzzyQuery:
		fq := query.NewFuzzyQuery(token)
		fq.SetField(models.FieldExpansion)
		fq.SetFuzziness(t.Fuzziness)
		fq.SetPrefix(t.Prefix)
		lookupQuery = fq
	case *query.TermRangeQuery:
		tr := query.NewTermRangeInclusiveQuery(t.Min, t.Max, t.InclusiveMin, t.InclusiveMax)
		tr.SetField(models.FieldExpansion)
		lookupQuery = tr
	default:
		tq := query.NewTermQuery(token)
		tq.SetField(models.FieldExpansion)
		lookupQuery = tq
	}

	req := bleve.NewSearchRequestOptions(lookupQuery, expansionFetchLimit, 0, false)
	req.Fields = []string{models.FieldSynonyms, models.FieldEFOTerms, models.FieldAltTerm}

	res, err := x.executor.Raw(ctx, models.IndexEFO, req)
	if err != nil {
		return nil, err
	}

	out := &lookupResult{
		efoTerms: make(map[string]struct{}),
		synonyms: make(map[string]struct{}),
	}
	for _, hit := range res.Hits {
		collectStrings(hit.Fields[models.FieldSynonyms], out.synonyms)
		collectStrings(hit.Fields[models.FieldAltTerm], out.synonyms)
		collectStrings(hit.Fields[models.FieldEFOTerms], out.efoTerms)
	}
	return out, nil
}

// collectStrings adds a stored field value (string or []interface{}) to a
// set
func collectStrings(v interface{}, into map[string]struct{}) {
	switch s := v.(type) {
	case string:
		if s != "" {
			into[s] = struct{}{}
		}
	case []interface{}:
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				into[str] = struct{}{}
			}
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
