package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	opts := badgerhold.DefaultOptions
	opts.Dir = t.TempDir()
	opts.ValueDir = opts.Dir
	opts.Logger = nil
	store, err := badgerhold.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewService(store, nil)
}

func TestLookupUnknownIsZero(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, int64(0), s.Lookup("S-BSST1"))
}

func TestIncrementVisibleAfterReload(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.Increment("S-BSST1"))
	require.NoError(t, s.Increment("S-BSST1"))
	require.NoError(t, s.Increment("s-other"))

	// the snapshot is copy-on-write: stale until reload
	assert.Equal(t, int64(0), s.Lookup("S-BSST1"))

	require.NoError(t, s.Reload())

	assert.Equal(t, int64(2), s.Lookup("S-BSST1"))
	assert.Equal(t, int64(2), s.Lookup("s-bsst1"))
	assert.Equal(t, int64(1), s.Lookup("S-OTHER"))
}
