package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
)

const sampleOWL = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:owl="http://www.w3.org/2002/07/owl#"
         xmlns:efo="http://www.ebi.ac.uk/efo/">
  <owl:Class rdf:about="http://example.org/cell">
    <rdfs:label>cell</rdfs:label>
  </owl:Class>
  <owl:Class rdf:about="http://example.org/leukocyte">
    <rdfs:label>leukocyte</rdfs:label>
    <efo:alternative_term>white blood cell</efo:alternative_term>
    <rdfs:subClassOf rdf:resource="http://example.org/cell"/>
  </owl:Class>
  <owl:Class rdf:about="http://example.org/osteoclast">
    <rdfs:label>osteoclast</rdfs:label>
    <rdfs:subClassOf rdf:resource="http://example.org/leukocyte"/>
  </owl:Class>
  <owl:Class rdf:about="http://example.org/ignored">
    <rdfs:label>should be ignored</rdfs:label>
  </owl:Class>
</rdf:RDF>`

func writeSampleOWL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.owl")
	require.NoError(t, os.WriteFile(path, []byte(sampleOWL), 0644))
	return path
}

func TestParseOWL(t *testing.T) {
	nodes, err := ParseOWL(writeSampleOWL(t))
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	byTerm := make(map[string]*models.OntologyNode)
	for _, n := range nodes {
		byTerm[n.Term] = n
	}

	leuk := byTerm["leukocyte"]
	require.NotNil(t, leuk)
	assert.Equal(t, "http://example.org/leukocyte", leuk.ID)
	assert.Equal(t, []string{"white blood cell"}, leuk.AltTerms)
	assert.Equal(t, []string{"http://example.org/cell"}, leuk.Parents)
}

func TestLoadFromOWL(t *testing.T) {
	pool := newTestPool(t)

	ignoreFile := filepath.Join(t.TempDir(), "ignore.txt")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("http://example.org/ignored\n"), 0644))

	loader := NewLoader(pool, common.OntologyConfig{IgnoreList: ignoreFile}, nil)

	count, err := loader.LoadFromOWL(writeSampleOWL(t))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	store := builtStore(t, pool)

	assert.True(t, store.IsEFOTerm("leukocyte"))
	assert.True(t, store.IsEFOTerm("white blood cell"))
	assert.False(t, store.IsEFOTerm("should be ignored"))
	assert.Equal(t, []string{"cell"}, store.GetAncestors("leukocyte"))
	assert.Equal(t, []string{"cell", "leukocyte"}, store.GetAncestors("osteoclast"))
}

func TestLoadFromOWLIsRebuild(t *testing.T) {
	pool := newTestPool(t)
	loader := NewLoader(pool, common.OntologyConfig{}, nil)

	_, err := loader.LoadFromOWL(writeSampleOWL(t))
	require.NoError(t, err)
	count, err := loader.LoadFromOWL(writeSampleOWL(t))
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	snap, err := pool.Acquire(models.IndexEFO)
	require.NoError(t, err)
	defer pool.Release(models.IndexEFO, snap)

	docs, err := snap.Index().DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), docs)
}

func TestFacetPathEncoding(t *testing.T) {
	root := &models.OntologyNode{ID: "r", Term: "root"}
	mid := &models.OntologyNode{ID: "m", Term: "middle", Parents: []string{"r"}}
	leaf := &models.OntologyNode{ID: "l", Term: "leaf", Parents: []string{"m"}}
	byID := map[string]*models.OntologyNode{"r": root, "m": mid, "l": leaf}

	assert.Equal(t, []string{"0/root", "1/middle", "2/leaf"}, facetPath(leaf, byID))
	assert.Equal(t, []string{"0/root"}, facetPath(root, byID))
}

func TestStopwordsDropNodes(t *testing.T) {
	pool := newTestPool(t)

	stopFile := filepath.Join(t.TempDir(), "stop.csv")
	require.NoError(t, os.WriteFile(stopFile, []byte("cell,other"), 0644))

	loader := NewLoader(pool, common.OntologyConfig{Stopwords: stopFile}, nil)

	count, err := loader.LoadFromOWL(writeSampleOWL(t))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	store := builtStore(t, pool)
	assert.False(t, store.IsEFOTerm("cell"))
	assert.True(t, store.IsEFOTerm("leukocyte"))
}
