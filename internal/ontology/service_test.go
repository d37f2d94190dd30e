package ontology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/httpclient"
	"github.com/bioarchive/studysearch/internal/index"
)

func TestServiceInitializeFromOWL(t *testing.T) {
	pool := newTestPool(t)

	cfg := common.DefaultConfig()
	cfg.Ontology.OwlFilename = writeSampleOWL(t)

	svc := NewService(pool, index.NewExecutor(pool, nil), cfg, nil)
	require.NoError(t, svc.Initialize())

	store := svc.Store()
	require.NotNil(t, store)
	assert.True(t, store.IsEFOTerm("leukocyte"))
	assert.Equal(t, []string{"0/cell", "1/leukocyte"}, svc.FacetValues("one leukocyte here"))
}

func TestServiceInitializeSkipsLoadWhenIndexPopulated(t *testing.T) {
	pool := newTestPool(t)
	seedNode(t, pool, "http://example.org/existing", "existing term", nil, nil)
	commitEFO(t, pool)

	cfg := common.DefaultConfig()
	cfg.Ontology.OwlFilename = writeSampleOWL(t)

	svc := NewService(pool, index.NewExecutor(pool, nil), cfg, nil)
	require.NoError(t, svc.Initialize())

	// the populated index was kept as-is
	assert.True(t, svc.Store().IsEFOTerm("existing term"))
	assert.False(t, svc.Store().IsEFOTerm("leukocyte"))
}

func TestServiceRefreshSwapsStore(t *testing.T) {
	pool := newTestPool(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleOWL))
	}))
	defer srv.Close()

	cfg := common.DefaultConfig()
	cfg.Ontology.UpdateURL = srv.URL
	cfg.Ontology.LocalOwlFilename = filepath.Join(t.TempDir(), "efo-latest.owl")

	svc := NewService(pool, index.NewExecutor(pool, nil), cfg, nil)
	require.NoError(t, svc.Initialize())
	assert.False(t, svc.Store().IsEFOTerm("leukocyte"))

	downloader := httpclient.NewDownloader(httpclient.NewDefaultHTTPClient(5*time.Second), nil)
	require.NoError(t, svc.Refresh(context.Background(), downloader))

	assert.True(t, svc.Store().IsEFOTerm("leukocyte"))
}

func TestServiceRefreshUnconfiguredIsNoop(t *testing.T) {
	pool := newTestPool(t)

	svc := NewService(pool, index.NewExecutor(pool, nil), common.DefaultConfig(), nil)
	require.NoError(t, svc.Initialize())

	downloader := httpclient.NewDownloader(httpclient.NewDefaultHTTPClient(time.Second), nil)
	assert.NoError(t, svc.Refresh(context.Background(), downloader))
}
