package search

import (
	"context"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// defaultFacetLimit is the per-dimension label count when the caller
// supplies none
const defaultFacetLimit = 20

// unboundedFacetLimit effectively disables the label cap; used for the
// release-year dimension which is limited only after reverse-sorting
const unboundedFacetLimit = 10000

// FacetEngine computes per-dimension facet counts under the current
// drill-down and formats them for the UI
type FacetEngine struct {
	executor *index.Executor
	registry *schema.Registry
	logger   arbor.ILogger
}

// NewFacetEngine creates the facet engine
func NewFacetEngine(executor *index.Executor, registry *schema.Registry, logger arbor.ILogger) *FacetEngine {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &FacetEngine{executor: executor, registry: registry, logger: logger}
}

// BuildDrillDown narrows the base query by the selected facet values.
// Values of dimensions declared toLowerCase are lower-cased; empty
// selections are ignored.
func (f *FacetEngine) BuildDrillDown(base query.Query, selected map[string][]string) query.Query {
	if len(selected) == 0 {
		return base
	}

	dims := make([]string, 0, len(selected))
	for dim := range selected {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	conjuncts := []query.Query{base}
	for _, dim := range dims {
		values := selected[dim]
		if len(values) == 0 {
			continue
		}
		desc := f.registry.Get(dim)
		if desc == nil || !desc.IsFacet() {
			continue
		}

		clauses := make([]query.Query, 0, len(values))
		for _, v := range values {
			if desc.ToLowerCase {
				v = strings.ToLower(v)
			}
			tq := query.NewTermQuery(v)
			tq.SetField(dim)
			clauses = append(clauses, tq)
		}
		if len(clauses) == 1 {
			conjuncts = append(conjuncts, clauses[0])
		} else {
			conjuncts = append(conjuncts, query.NewDisjunctionQuery(clauses))
		}
	}

	if len(conjuncts) == 1 {
		return base
	}
	return query.NewConjunctionQuery(conjuncts)
}

// Counts executes the drill-down with a facet-collecting request and
// formats each visible dimension per the UI rules
func (f *FacetEngine) Counts(ctx context.Context, drill query.Query, collection string,
	selected map[string][]string, limit int, authorised bool) ([]models.Facet, error) {

	if limit <= 0 {
		limit = defaultFacetLimit
	}

	descs := f.registry.FacetDescriptors(collection)
	if len(descs) == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(drill, 0, 0, false)
	requested := make([]*models.PropertyDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.IsPrivate && !authorised {
			continue
		}
		facetLimit := limit
		if d.Name == models.FieldReleaseYear {
			facetLimit = unboundedFacetLimit
		}
		req.AddFacet(d.Name, bleve.NewFacetRequest(d.Name, facetLimit))
		requested = append(requested, d)
	}
	if len(requested) == 0 {
		return nil, nil
	}

	res, err := f.executor.Raw(ctx, models.IndexSubmission, req)
	if err != nil {
		return nil, err
	}

	selectedFreq := f.selectedFacetFreq(ctx, drill, selected)

	var out []models.Facet
	for _, d := range requested {
		fr, ok := res.Facets[d.Name]
		if !ok {
			continue
		}

		// the collection facet is only meaningful at the top of the
		// hierarchy or when subcollections exist
		if d.Name == models.FieldCollection &&
			collection != schema.PublicCollection && !f.registry.HasChildren(collection) {
			continue
		}

		var terms []*bsearch.TermFacet
		if fr.Terms != nil {
			terms = fr.Terms.Terms()
		}

		values := make([]models.FacetValue, 0, len(terms))
		seen := make(map[string]bool)
		for _, t := range terms {
			if !d.NAVisible && strings.EqualFold(t.Term, d.NALabel()) {
				continue
			}
			values = append(values, models.FacetValue{Value: t.Term, Count: t.Count})
			seen[t.Term] = true
		}

		// currently-selected low-frequency labels stay visible
		for _, v := range selected[d.Name] {
			if d.ToLowerCase {
				v = strings.ToLower(v)
			}
			if seen[v] {
				continue
			}
			if freq, ok := selectedFreq[d.Name][v]; ok {
				values = append([]models.FacetValue{{Value: v, Count: freq}}, values...)
				seen[v] = true
			}
		}

		if d.Name == models.FieldReleaseYear {
			sort.Slice(values, func(i, j int) bool { return values[i].Value > values[j].Value })
			filtered := values[:0]
			for _, v := range values {
				if !strings.EqualFold(v.Value, d.NALabel()) {
					filtered = append(filtered, v)
				}
			}
			values = filtered
			if len(values) > limit {
				values = values[:limit]
			}
		} else {
			sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
		}

		out = append(out, models.Facet{
			Name:   d.Name,
			Title:  d.Title,
			Values: values,
		})
	}

	return out, nil
}

// selectedFacetFreq queries the precise count of every selected facet
// value under the current drill-down
func (f *FacetEngine) selectedFacetFreq(ctx context.Context, drill query.Query,
	selected map[string][]string) map[string]map[string]int {

	out := make(map[string]map[string]int)
	for dim, values := range selected {
		desc := f.registry.Get(dim)
		if desc == nil || !desc.IsFacet() {
			continue
		}
		for _, v := range values {
			if desc.ToLowerCase {
				v = strings.ToLower(v)
			}
			tq := query.NewTermQuery(v)
			tq.SetField(dim)
			countReq := bleve.NewSearchRequestOptions(
				query.NewConjunctionQuery([]query.Query{drill, tq}), 0, 0, false)
			res, err := f.executor.Raw(ctx, models.IndexSubmission, countReq)
			if err != nil {
				f.logger.Debug().Err(err).Str("dimension", dim).Str("value", v).
					Msg("Selected facet count failed")
				continue
			}
			if out[dim] == nil {
				out[dim] = make(map[string]int)
			}
			out[dim][v] = int(res.Total)
		}
	}
	return out
}
