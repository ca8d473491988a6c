package ledger_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritrail/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// countingStore wraps a QueryStore and counts point lookups reaching it.
type countingStore struct {
	ledger.QueryStore
	batchLookups atomic.Int64
	fileLookups  atomic.Int64
}

func (c *countingStore) GetByBatchID(ctx context.Context, batchID string) (*ledger.Record, error) {
	c.batchLookups.Add(1)
	return c.QueryStore.GetByBatchID(ctx, batchID)
}

func (c *countingStore) GetByFileID(ctx context.Context, fileID string) (*ledger.Record, error) {
	c.fileLookups.Add(1)
	return c.QueryStore.GetByFileID(ctx, fileID)
}

func newTestCachedStore(t *testing.T, opts ...ledger.CacheOption) (*ledger.CachedStore, *countingStore) {
	t.Helper()
	counting := &countingStore{QueryStore: ledger.NewMemoryStore()}
	cached, err := ledger.NewCachedStore(counting, opts...)
	require.NoError(t, err)
	return cached, counting
}

// =============================================================================
// POSITIVE CACHING TESTS
// =============================================================================

func TestCachedStore_RepeatLookupHitsCache(t *testing.T) {
	// GIVEN: A record fetched once through the cache
	// WHEN: Looking it up again by batch ID and by file ID
	// THEN: The backing store is not consulted again

	cached, counting := newTestCachedStore(t)
	ctx := context.Background()
	records := mustAppend(t, counting.QueryStore, 1)

	for i := 0; i < 3; i++ {
		rec, err := cached.GetByBatchID(ctx, records[0].BatchID)
		require.NoError(t, err)
		assert.Equal(t, records[0].RecordHash, rec.RecordHash)
	}
	assert.Equal(t, int64(1), counting.batchLookups.Load())

	for i := 0; i < 3; i++ {
		rec, err := cached.GetByFileID(ctx, records[0].FileID)
		require.NoError(t, err)
		assert.Equal(t, records[0].RecordHash, rec.RecordHash)
	}
	assert.Equal(t, int64(1), counting.fileLookups.Load())
}

func TestCachedStore_AppendedRecordIsRetrievable(t *testing.T) {
	// GIVEN: A record appended through the cached store
	// WHEN: Looking it up under both keys
	// THEN: The record comes back (the append dropped any stale negatives)

	cached, _ := newTestCachedStore(t)
	ctx := context.Background()

	rec, err := cached.Append(ctx, appendInput("BATCH-20260115-AAAAAA", strings.Repeat("aa", 32), "LOW"))
	require.NoError(t, err)

	got, err := cached.GetByBatchID(ctx, rec.BatchID)
	require.NoError(t, err)
	assert.Equal(t, rec.RecordHash, got.RecordHash)

	got, err = cached.GetByFileID(ctx, rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, rec.RecordHash, got.RecordHash)
}

func TestCachedStore_DuplicateKeyAppendReturnsEarliest(t *testing.T) {
	// GIVEN: Two records with the same batch ID, both appended through
	//        the cached store
	// WHEN: Looking up that batch ID
	// THEN: The earliest append wins, exactly as on the uncached store

	cached, _ := newTestCachedStore(t)
	ctx := context.Background()

	first, err := cached.Append(ctx, appendInput("BATCH-20260115-DUPDUP", strings.Repeat("11", 32), "LOW"))
	require.NoError(t, err)
	_, err = cached.Append(ctx, appendInput("BATCH-20260115-DUPDUP", strings.Repeat("22", 32), "HIGH"))
	require.NoError(t, err)

	got, err := cached.GetByBatchID(ctx, "BATCH-20260115-DUPDUP")
	require.NoError(t, err)
	assert.Equal(t, first.RecordHash, got.RecordHash)
}

func TestCachedStore_DuplicateKeyInPreexistingLedgerReturnsEarliest(t *testing.T) {
	// GIVEN: A ledger that already held a record for a batch ID before the
	//        cache was created
	// WHEN: A duplicate for that batch ID is appended through the cache and
	//       the batch ID is looked up
	// THEN: The pre-existing earliest record comes back, not the new one

	inner := ledger.NewMemoryStore()
	ctx := context.Background()
	first, err := inner.Append(ctx, appendInput("BATCH-20260115-DUPDUP", strings.Repeat("11", 32), "LOW"))
	require.NoError(t, err)

	cached, err := ledger.NewCachedStore(inner)
	require.NoError(t, err)

	later, err := cached.Append(ctx, appendInput("BATCH-20260115-DUPDUP", strings.Repeat("22", 32), "HIGH"))
	require.NoError(t, err)

	got, err := cached.GetByBatchID(ctx, "BATCH-20260115-DUPDUP")
	require.NoError(t, err)
	assert.Equal(t, first.RecordHash, got.RecordHash)
	assert.NotEqual(t, later.RecordHash, got.RecordHash)

	// The later record's distinct file ID still resolves to itself.
	got, err = cached.GetByFileID(ctx, later.FileID)
	require.NoError(t, err)
	assert.Equal(t, later.RecordHash, got.RecordHash)
}

// =============================================================================
// NEGATIVE CACHING TESTS
// =============================================================================

func TestCachedStore_NegativeResultIsCached(t *testing.T) {
	// GIVEN: A lookup for a missing key
	// WHEN: Repeating the lookup within the negative TTL
	// THEN: NotFound is served from the cache, one store scan total

	cached, counting := newTestCachedStore(t, ledger.WithNegativeTTL(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cached.GetByBatchID(ctx, "BATCH-20990101-FFFFFF")
		assert.True(t, ledger.IsNotFound(err))
	}
	assert.Equal(t, int64(1), counting.batchLookups.Load())
}

func TestCachedStore_AppendInvalidatesNegativeEntry(t *testing.T) {
	// GIVEN: A cached "not found" for a batch ID
	// WHEN: A record with that batch ID is appended through the cache
	// THEN: The very next lookup finds it, TTL notwithstanding

	cached, _ := newTestCachedStore(t, ledger.WithNegativeTTL(time.Minute))
	ctx := context.Background()

	_, err := cached.GetByBatchID(ctx, "BATCH-20260115-AAAAAA")
	require.True(t, ledger.IsNotFound(err))

	rec, err := cached.Append(ctx, appendInput("BATCH-20260115-AAAAAA", strings.Repeat("aa", 32), "LOW"))
	require.NoError(t, err)

	got, err := cached.GetByBatchID(ctx, "BATCH-20260115-AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, rec.RecordHash, got.RecordHash)
}

func TestCachedStore_NegativeEntryExpires(t *testing.T) {
	// GIVEN: A cached "not found" with a short TTL, then an append that
	//        bypasses the cache entirely
	// WHEN: Looking up after the TTL has passed
	// THEN: The store is consulted again and the record is found

	counting := &countingStore{QueryStore: ledger.NewMemoryStore()}
	cached, err := ledger.NewCachedStore(counting, ledger.WithNegativeTTL(50*time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.GetByBatchID(ctx, "BATCH-20260115-AAAAAA")
	require.True(t, ledger.IsNotFound(err))

	// Append directly to the backing store, as another process would.
	rec, err := counting.QueryStore.Append(ctx, appendInput("BATCH-20260115-AAAAAA", strings.Repeat("aa", 32), "LOW"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := cached.GetByBatchID(ctx, "BATCH-20260115-AAAAAA")
		return err == nil && got.RecordHash == rec.RecordHash
	}, 2*time.Second, 20*time.Millisecond, "negative entry should expire and the record appear")
}

// =============================================================================
// PASS-THROUGH TESTS
// =============================================================================

func TestCachedStore_NonPointReadsPassThrough(t *testing.T) {
	// GIVEN: Records in the backing store
	// WHEN: Calling Recent, All, Query, Stats, and VerifyIntegrity
	// THEN: Results reflect the backing store directly

	cached, counting := newTestCachedStore(t)
	ctx := context.Background()
	mustAppend(t, counting.QueryStore, 4)

	recent, err := cached.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	all, err := cached.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	out, err := cached.Query(ctx, ledger.QueryFilter{RiskLevel: "LOW"})
	require.NoError(t, err)
	assert.Len(t, out, 4)

	stats, err := cached.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRecords)

	report, err := cached.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
}
