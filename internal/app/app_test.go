package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	cfg := common.DefaultConfig()
	cfg.Index.BaseDir = filepath.Join(dir, "indexes")
	cfg.Index.TaskDBPath = filepath.Join(dir, "tasks")
	cfg.Queue.CommitBatchSize = 1

	application, err := New(cfg, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(application.Close)
	return application
}

// Full boot: index a submission through the queue, then find it through
// the search facade
func TestAppIndexAndSearchRoundTrip(t *testing.T) {
	application := newTestApp(t)

	_, _, err := application.QueueManager.Enqueue("S-BSST1", &models.IndexPayload{
		Submission: models.FlatDocument{
			models.FieldAccession:   "S-BSST1",
			models.FieldTitle:       "Human leukocyte study",
			models.FieldContent:     "leukocyte is a cell",
			models.FieldAccess:      "public",
			models.FieldReleaseTime: int64(1609459200000),
		},
		Files: []models.FlatDocument{
			{models.FieldFilePath: "raw/data.txt", models.FieldFileName: "data.txt"},
		},
		PageTab: `{"accno":"S-BSST1"}`,
	})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for {
		status := application.QueueManager.Status("S-BSST1")
		if status.State == models.TaskDone {
			break
		}
		require.NotEqual(t, models.TaskError, status.State, status.Message)
		require.True(t, time.Now().Before(deadline), "indexing never completed")
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := application.SearchService.Search(context.Background(), &models.SearchRequest{
		Query:    "leukocyte",
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.TotalHits)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "s-bsst1", resp.Hits[0][models.FieldAccession])
}

func TestAppMetadataSurface(t *testing.T) {
	application := newTestApp(t)

	metas := application.Pool.Metadata()
	assert.Len(t, metas, 5)

	var facetDocs uint64
	for _, m := range metas {
		if m.Name == models.IndexFacet {
			facetDocs = m.NumberOfDocuments
		}
	}
	// seeded with one document per facet dimension
	assert.Greater(t, facetDocs, uint64(0))
}
