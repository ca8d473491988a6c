package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritrail/ledger-engine/index/sqlite"
)

func newTestIndex(t *testing.T) *sqlite.Index {
	t.Helper()
	idx, err := sqlite.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_PutAndLookup(t *testing.T) {
	// GIVEN: An offset recorded for a batch ID and file ID
	// WHEN: Looking both keys up
	// THEN: The stored offset comes back for each

	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "BATCH-20260115-A3F5E8", "file-1", 512))

	offset, ok, err := idx.BatchOffset(ctx, "BATCH-20260115-A3F5E8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(512), offset)

	offset, ok, err = idx.FileOffset(ctx, "file-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(512), offset)
}

func TestIndex_MissingKey(t *testing.T) {
	// GIVEN: An empty index
	// WHEN: Looking up any key
	// THEN: ok is false without an error

	idx := newTestIndex(t)

	_, ok, err := idx.BatchOffset(context.Background(), "BATCH-20260115-A3F5E8")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_FirstWriteWins(t *testing.T) {
	// GIVEN: Two records sharing a batch ID at different offsets
	// WHEN: Both are indexed
	// THEN: The earlier offset is kept, matching earliest-append-wins lookups

	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "BATCH-20260115-DUPDUP", "file-1", 0))
	require.NoError(t, idx.Put(ctx, "BATCH-20260115-DUPDUP", "file-2", 900))

	offset, ok, err := idx.BatchOffset(ctx, "BATCH-20260115-DUPDUP")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), offset)

	// The second record's file ID still gets its own entry.
	offset, ok, err = idx.FileOffset(ctx, "file-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(900), offset)
}

func TestIndex_Reset(t *testing.T) {
	// GIVEN: A populated index
	// WHEN: Resetting
	// THEN: All entries are gone

	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "BATCH-20260115-A3F5E8", "file-1", 512))
	require.NoError(t, idx.Reset(ctx))

	_, ok, err := idx.BatchOffset(ctx, "BATCH-20260115-A3F5E8")
	require.NoError(t, err)
	assert.False(t, ok)
}
