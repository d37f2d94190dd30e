package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

func newTestService(t *testing.T) (*Service, *index.Pool, *index.TxnManager) {
	t.Helper()

	registry, err := schema.NewRegistry("", nil)
	require.NoError(t, err)

	pool := index.NewPool(t.TempDir(), nil)
	require.NoError(t, pool.OpenAll(registry))
	t.Cleanup(pool.Close)

	svc := NewService(pool, registry, common.DefaultConfig(), nil)
	txn := index.NewTxnManager(pool, nil, nil)
	return svc, pool, txn
}

func indexOne(t *testing.T, txn *index.TxnManager) {
	t.Helper()
	require.NoError(t, txn.UpdateSubmission("S-BSST1", models.FlatDocument{
		models.FieldAccession:   "S-BSST1",
		models.FieldTitle:       "Human leukocyte study",
		models.FieldContent:     "leukocyte is a cell",
		models.FieldAccess:      "public",
		models.FieldReleaseTime: int64(1609459200000),
	}, nil, ""))
	require.NoError(t, txn.Commit())
}

// Index and retrieve: the submitted document is found with its snippet
// and public flag
func TestSearchIndexAndRetrieve(t *testing.T) {
	svc, _, txn := newTestService(t)
	indexOne(t, txn)

	resp, err := svc.Search(context.Background(), &models.SearchRequest{
		Query:      "leukocyte",
		Collection: "public",
		Page:       1,
		PageSize:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), resp.TotalHits)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "s-bsst1", resp.Hits[0][models.FieldAccession])
	assert.Contains(t, resp.Hits[0][models.FieldContent], "leukocyte")
	assert.Equal(t, true, resp.Hits[0]["isPublic"])
	assert.True(t, resp.IsTotalHitsExact)
}

// Ontology expansion filtering: in-index expansion terms survive, absent
// ones are dropped
func TestSearchExpansionFiltering(t *testing.T) {
	svc, pool, txn := newTestService(t)

	seedOntology(t, pool, "http://example.org/EFO_0000001", "leukocyte",
		[]string{"white blood cell"}, []string{"osteoclast"})

	require.NoError(t, txn.UpdateSubmission("S-BSST2", models.FlatDocument{
		models.FieldAccession: "S-BSST2",
		models.FieldContent:   "osteoclast differentiation",
		models.FieldAccess:    "public",
	}, nil, ""))
	require.NoError(t, txn.Commit())

	resp, err := svc.Search(context.Background(), &models.SearchRequest{
		Query:      "leukocyte",
		Collection: "public",
		Page:       1,
		PageSize:   10,
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, resp.TotalHits, uint64(1))
	assert.Equal(t, []string{"osteoclast"}, resp.ExpandedEfoTerms)
	assert.NotContains(t, resp.ExpandedSynonyms, "white blood cell")
}

// Spell suggestion: a near-miss query suggests the indexed term
func TestSearchSpellSuggestion(t *testing.T) {
	svc, _, txn := newTestService(t)
	indexOne(t, txn)

	resp, err := svc.Search(context.Background(), &models.SearchRequest{
		Query:      "leukocytte",
		Collection: "public",
		Page:       1,
		PageSize:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), resp.TotalHits)
	require.NotEmpty(t, resp.Suggestion)
	assert.Equal(t, "leukocyte", resp.Suggestion[0])
}

// Restricted field: querying access fails with an invalid-query error
func TestSearchRestrictedField(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Search(context.Background(), &models.SearchRequest{
		Query: "access:private",
	})
	var invalid *models.InvalidQueryError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Message, "access")
}

// Deep pagination rejection
func TestSearchDeepPaginationRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Search(context.Background(), &models.SearchRequest{
		Query:    "leukocyte",
		Page:     100,
		PageSize: 600,
	})
	var invalidArg *models.InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
	assert.Contains(t, invalidArg.Message, "Deep pagination")
}

// Anonymous callers never see private documents
func TestSearchAccessFiltering(t *testing.T) {
	svc, _, txn := newTestService(t)

	require.NoError(t, txn.UpdateSubmission("S-PRIV1", models.FlatDocument{
		models.FieldAccession: "S-PRIV1",
		models.FieldContent:   "leukocyte private data",
		models.FieldAccess:    "frank",
	}, nil, ""))
	require.NoError(t, txn.Commit())

	resp, err := svc.Search(context.Background(), &models.SearchRequest{
		Query: "leukocyte",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), resp.TotalHits)
}

func TestSearchEmptyQueryMatchesAllPublic(t *testing.T) {
	svc, _, txn := newTestService(t)
	indexOne(t, txn)

	resp, err := svc.Search(context.Background(), &models.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.TotalHits)
}

func TestSearchFacetDrillDown(t *testing.T) {
	svc, _, txn := newTestService(t)

	require.NoError(t, txn.UpdateSubmission("S-A1", models.FlatDocument{
		models.FieldAccession: "S-A1",
		models.FieldContent:   "leukocyte study one",
		models.FieldAccess:    "public",
		models.FieldType:      "RNA-seq",
	}, nil, ""))
	require.NoError(t, txn.UpdateSubmission("S-A2", models.FlatDocument{
		models.FieldAccession: "S-A2",
		models.FieldContent:   "leukocyte study two",
		models.FieldAccess:    "public",
		models.FieldType:      "proteomics",
	}, nil, ""))
	require.NoError(t, txn.Commit())

	resp, err := svc.Search(context.Background(), &models.SearchRequest{
		Query:  "leukocyte",
		Facets: map[string][]string{models.FieldType: {"RNA-seq"}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.TotalHits)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "s-a1", resp.Hits[0][models.FieldAccession])
}
