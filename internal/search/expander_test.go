package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// newTestEnv opens a pool with every index under a temp dir
func newTestEnv(t *testing.T) (*index.Pool, *schema.Registry, *index.Executor) {
	t.Helper()

	registry, err := schema.NewRegistry("", nil)
	require.NoError(t, err)

	pool := index.NewPool(t.TempDir(), nil)
	require.NoError(t, pool.OpenAll(registry))
	t.Cleanup(pool.Close)

	return pool, registry, index.NewExecutor(pool, nil)
}

// seedOntology commits one ontology node
func seedOntology(t *testing.T, pool *index.Pool, id, term string, synonyms, efoTerms []string) {
	t.Helper()

	writer, err := pool.Writer(models.IndexEFO)
	require.NoError(t, err)

	expansion := []string{term}
	expansion = append(expansion, synonyms...)

	require.NoError(t, writer.Upsert(id, map[string]interface{}{
		models.FieldEFOID:       id,
		models.FieldTerm:        term,
		models.FieldSynonyms:    synonyms,
		models.FieldEFOTerms:    efoTerms,
		models.FieldExpansion:   expansion,
		models.FieldHasChildren: len(efoTerms) > 0,
		models.FieldFacetPath:   []string{"0/" + term},
	}))
	require.NoError(t, writer.Commit())
	pool.RefreshAll()
}

func TestExpandTermQuery(t *testing.T) {
	pool, registry, exec := newTestEnv(t)
	seedOntology(t, pool, "http://example.org/EFO_0000001", "leukocyte",
		[]string{"white blood cell"}, []string{"osteoclast"})

	x := NewExpander(exec, registry, nil)

	tq := query.NewTermQuery("leukocyte")
	tq.SetField(models.FieldContent)

	result := x.Expand(context.Background(), tq)
	require.NotNil(t, result)

	assert.Equal(t, []string{"osteoclast"}, result.ExpandedEfoTerms)
	assert.Equal(t, []string{"white blood cell"}, result.ExpandedSynonyms)
	assert.False(t, result.TooManyExpansionTerms)

	disj, ok := result.Query.(*query.DisjunctionQuery)
	require.True(t, ok, "got %T", result.Query)
	require.Len(t, disj.Disjuncts, 3)

	// the original leaf survives first
	assert.Same(t, tq, disj.Disjuncts[0])

	// the multi-word synonym became a phrase query on the original field
	foundPhrase := false
	for _, clause := range disj.Disjuncts[1:] {
		if pq, ok := clause.(*query.PhraseQuery); ok {
			assert.Equal(t, []string{"white", "blood", "cell"}, pq.Terms)
			assert.Equal(t, models.FieldContent, pq.Field)
			foundPhrase = true
		}
	}
	assert.True(t, foundPhrase)
}

func TestExpandNonExpandableFieldUnchanged(t *testing.T) {
	pool, registry, exec := newTestEnv(t)
	seedOntology(t, pool, "http://example.org/EFO_0000001", "leukocyte", []string{"white blood cell"}, nil)

	x := NewExpander(exec, registry, nil)

	tq := query.NewTermQuery("leukocyte")
	tq.SetField(models.FieldAccession)

	result := x.Expand(context.Background(), tq)
	assert.Same(t, tq, result.Query)
	assert.Empty(t, result.ExpandedEfoTerms)
	assert.Empty(t, result.ExpandedSynonyms)
}

func TestExpandUnknownTermUnchanged(t *testing.T) {
	_, registry, exec := newTestEnv(t)

	x := NewExpander(exec, registry, nil)

	tq := query.NewTermQuery("zzznotaterm")
	tq.SetField(models.FieldContent)

	result := x.Expand(context.Background(), tq)
	assert.Same(t, tq, result.Query)
}

func TestExpandMatchAllAndWildcardUnchanged(t *testing.T) {
	_, registry, exec := newTestEnv(t)
	x := NewExpander(exec, registry, nil)

	ma := query.NewMatchAllQuery()
	assert.Same(t, ma, x.Expand(context.Background(), ma).Query)

	wq := query.NewWildcardQuery("leuk*yte")
	wq.SetField(models.FieldContent)
	assert.Same(t, wq, x.Expand(context.Background(), wq).Query)

	pq := query.NewPrefixQuery("leuk")
	pq.SetField(models.FieldContent)
	assert.Same(t, pq, x.Expand(context.Background(), pq).Query)
}

func TestExpandBooleanRecursion(t *testing.T) {
	pool, registry, exec := newTestEnv(t)
	seedOntology(t, pool, "http://example.org/EFO_0000001", "leukocyte", nil, []string{"osteoclast"})

	x := NewExpander(exec, registry, nil)

	left := query.NewTermQuery("leukocyte")
	left.SetField(models.FieldContent)
	right := query.NewTermQuery("unrelated")
	right.SetField(models.FieldContent)
	conj := query.NewConjunctionQuery([]query.Query{left, right})

	result := x.Expand(context.Background(), conj)

	out, ok := result.Query.(*query.ConjunctionQuery)
	require.True(t, ok)
	require.Len(t, out.Conjuncts, 2)

	_, leftExpanded := out.Conjuncts[0].(*query.DisjunctionQuery)
	assert.True(t, leftExpanded, "left clause should have been expanded")
	assert.Same(t, right, out.Conjuncts[1])
	assert.Equal(t, []string{"osteoclast"}, result.ExpandedEfoTerms)
}

func TestExpandTooManyTerms(t *testing.T) {
	pool, registry, exec := newTestEnv(t)

	many := make([]string, MaxExpansionTerms+1)
	for i := range many {
		many[i] = fmt.Sprintf("related-term-%d", i)
	}
	seedOntology(t, pool, "http://example.org/EFO_0000002", "leukocyte", nil, many)

	x := NewExpander(exec, registry, nil)

	tq := query.NewTermQuery("leukocyte")
	tq.SetField(models.FieldContent)

	result := x.Expand(context.Background(), tq)
	assert.True(t, result.TooManyExpansionTerms)
	assert.Same(t, tq, result.Query)
	assert.Empty(t, result.ExpandedEfoTerms)
}

func TestExpandSelfRedundantDropped(t *testing.T) {
	pool, registry, exec := newTestEnv(t)
	// the node's synonym equals the query term and must not be re-added
	seedOntology(t, pool, "http://example.org/EFO_0000003", "Leukocyte", []string{"leukocyte"}, nil)

	x := NewExpander(exec, registry, nil)

	tq := query.NewTermQuery("leukocyte")
	tq.SetField(models.FieldContent)

	result := x.Expand(context.Background(), tq)
	assert.Same(t, tq, result.Query)
	assert.Empty(t, result.ExpandedSynonyms)
}
