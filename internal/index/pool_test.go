package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// newTestPool opens every named index under a temp dir
func newTestPool(t *testing.T) (*Pool, *schema.Registry) {
	t.Helper()

	registry, err := schema.NewRegistry("", nil)
	require.NoError(t, err)

	pool := NewPool(t.TempDir(), nil)
	require.NoError(t, pool.OpenAll(registry))
	t.Cleanup(pool.Close)

	return pool, registry
}

func TestAcquireReleasePairing(t *testing.T) {
	pool, _ := newTestPool(t)

	snap, err := pool.Acquire(models.IndexSubmission)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pool.Outstanding(models.IndexSubmission))

	require.NoError(t, pool.Release(models.IndexSubmission, snap))
	assert.Equal(t, int64(0), pool.Outstanding(models.IndexSubmission))
}

func TestReleaseToWrongIndexFails(t *testing.T) {
	pool, _ := newTestPool(t)

	snap, err := pool.Acquire(models.IndexSubmission)
	require.NoError(t, err)

	err = pool.Release(models.IndexPagetab, snap)
	assert.Error(t, err)

	// the snapshot is still owned by submission
	require.NoError(t, pool.Release(models.IndexSubmission, snap))
}

func TestDoubleReleaseFails(t *testing.T) {
	pool, _ := newTestPool(t)

	snap, err := pool.Acquire(models.IndexSubmission)
	require.NoError(t, err)
	require.NoError(t, pool.Release(models.IndexSubmission, snap))
	assert.Error(t, pool.Release(models.IndexSubmission, snap))
}

func TestAcquireUnknownIndexFails(t *testing.T) {
	pool, _ := newTestPool(t)

	_, err := pool.Acquire("nope")
	assert.Error(t, err)
}

func TestCommitStampsUpdateTime(t *testing.T) {
	pool, _ := newTestPool(t)

	writer, err := pool.Writer(models.IndexSubmission)
	require.NoError(t, err)
	require.NoError(t, writer.Upsert("s-test1", map[string]interface{}{
		models.FieldID:        "s-test1",
		models.FieldAccession: "s-test1",
	}))

	before := time.Now().UnixMilli()
	require.NoError(t, pool.CommitSubmissionRelatedIndices())

	var updateTime int64
	for _, meta := range pool.Metadata() {
		if meta.Name == models.IndexSubmission {
			updateTime = meta.UpdateTime
			assert.Equal(t, uint64(1), meta.NumberOfDocuments)
		}
	}
	assert.GreaterOrEqual(t, updateTime, before)

	// updateTime is monotonically non-decreasing across commits
	require.NoError(t, pool.CommitSubmissionRelatedIndices())
	for _, meta := range pool.Metadata() {
		if meta.Name == models.IndexSubmission {
			assert.GreaterOrEqual(t, meta.UpdateTime, updateTime)
		}
	}
}

func TestMetadataListsAllIndexes(t *testing.T) {
	pool, _ := newTestPool(t)

	metas := pool.Metadata()
	require.Len(t, metas, 5)

	names := make(map[string]bool)
	for _, m := range metas {
		names[m.Name] = true
		assert.NotEmpty(t, m.Location)
	}
	for _, name := range []string{
		models.IndexSubmission, models.IndexPagetab, models.IndexFiles,
		models.IndexFacet, models.IndexEFO,
	} {
		assert.True(t, names[name], "missing metadata for %s", name)
	}
}

func TestRefreshAllBumpsGeneration(t *testing.T) {
	pool, _ := newTestPool(t)

	before, err := pool.Acquire(models.IndexSubmission)
	require.NoError(t, err)
	require.NoError(t, pool.Release(models.IndexSubmission, before))

	pool.RefreshAll()

	after, err := pool.Acquire(models.IndexSubmission)
	require.NoError(t, err)
	defer pool.Release(models.IndexSubmission, after)

	assert.Greater(t, after.Generation(), before.Generation())
}

func TestWriterDeleteByField(t *testing.T) {
	pool, _ := newTestPool(t)

	writer, err := pool.Writer(models.IndexFiles)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, writer.Upsert(
			"s-x-"+string(rune('1'+i)),
			map[string]interface{}{
				models.FieldID:    "s-x-" + string(rune('1'+i)),
				models.FieldOwner: "s-x",
			}))
	}
	require.NoError(t, writer.Commit())

	deleted, err := writer.DeleteByField(models.FieldOwner, "S-X")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	require.NoError(t, writer.Commit())

	snap, err := pool.Acquire(models.IndexFiles)
	require.NoError(t, err)
	defer pool.Release(models.IndexFiles, snap)

	count, err := snap.Index().DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
