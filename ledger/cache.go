/*
cache.go - Bounded read-through cache for point lookups

PURPOSE:
  Verification lookups are the hot path (every QR scan hits one) while the
  backing store is a linear scan in the worst case. This decorator caches
  point lookups in front of any Store.

DESIGN:
  - Positive entries live in a capacity-bounded LRU: records are immutable,
    so a positive entry can never go stale.
  - Negative ("not found") entries get a SHORT TTL: a later append can make
    a previously-absent key present, and an unexpiring negative entry would
    report NotFound forever.
  - Append drops any negative entries for the new record's keys immediately.
    It never writes the record into the positive cache: lookups resolve a
    duplicated key to the EARLIEST append, and the earliest record may not be
    the one just written.
  - Concurrent misses for the same key collapse into one store scan
    (singleflight), so a thundering herd on a cold key costs one read.

SEE ALSO:
  - store.go: The decorated interface
  - metrics/metrics.go: Cache hit/miss counters
*/
package ledger

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/veritrail/ledger-engine/metrics"
)

const (
	// DefaultCacheSize bounds the positive entry count.
	DefaultCacheSize = 1024

	// DefaultNegativeTTL is how long a "not found" result is trusted.
	DefaultNegativeTTL = 5 * time.Second
)

// =============================================================================
// CACHED STORE
// =============================================================================

// CachedStore decorates a QueryStore with a bounded read-through cache over
// GetByBatchID and GetByFileID. All other operations pass through.
type CachedStore struct {
	inner QueryStore

	positives *lru.Cache[string, *Record]
	negatives *expirable.LRU[string, struct{}]
	group     singleflight.Group
	metrics   *metrics.Metrics
}

// CacheOption configures a CachedStore.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	size        int
	negativeTTL time.Duration
	metrics     *metrics.Metrics
}

// WithCacheSize bounds the number of positive entries.
func WithCacheSize(n int) CacheOption {
	return func(c *cacheConfig) { c.size = n }
}

// WithNegativeTTL sets the expiry for cached "not found" results.
func WithNegativeTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) { c.negativeTTL = ttl }
}

// WithCacheMetrics attaches hit/miss instrumentation.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *cacheConfig) { c.metrics = m }
}

// NewCachedStore wraps inner with a lookup cache.
func NewCachedStore(inner QueryStore, opts ...CacheOption) (*CachedStore, error) {
	cfg := cacheConfig{size: DefaultCacheSize, negativeTTL: DefaultNegativeTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	positives, err := lru.New[string, *Record](cfg.size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{
		inner:     inner,
		positives: positives,
		negatives: expirable.NewLRU[string, struct{}](cfg.size, nil, cfg.negativeTTL),
		metrics:   cfg.metrics,
	}, nil
}

func batchKey(id string) string { return "batch\x00" + id }
func fileKey(id string) string  { return "file\x00" + id }

// Append implements Store, invalidating stale negatives for the new keys.
func (c *CachedStore) Append(ctx context.Context, in AppendInput) (*Record, error) {
	rec, err := c.inner.Append(ctx, in)
	if err != nil {
		return nil, err
	}

	// A stale negative for either key would incorrectly report NotFound
	// until its TTL expired; drop them now. The record is deliberately NOT
	// written to the positive cache: an earlier record with the same key may
	// exist in the ledger without a cache entry, and lookups must resolve to
	// the earliest append. The next miss fetches the true earliest.
	c.negatives.Remove(batchKey(rec.BatchID))
	c.negatives.Remove(fileKey(rec.FileID))
	return rec, nil
}

// GetByBatchID implements Store.
func (c *CachedStore) GetByBatchID(ctx context.Context, batchID string) (*Record, error) {
	return c.lookup(batchKey(batchID), func() (*Record, error) {
		return c.inner.GetByBatchID(ctx, batchID)
	})
}

// GetByFileID implements Store.
func (c *CachedStore) GetByFileID(ctx context.Context, fileID string) (*Record, error) {
	return c.lookup(fileKey(fileID), func() (*Record, error) {
		return c.inner.GetByFileID(ctx, fileID)
	})
}

func (c *CachedStore) lookup(key string, fetch func() (*Record, error)) (*Record, error) {
	if rec, ok := c.positives.Get(key); ok {
		c.metrics.CacheHit()
		return rec, nil
	}
	if _, ok := c.negatives.Get(key); ok {
		c.metrics.CacheHit()
		return nil, ErrNotFound
	}
	c.metrics.CacheMiss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		rec, err := fetch()
		if err != nil {
			if IsNotFound(err) {
				c.negatives.Add(key, struct{}{})
			}
			// Storage failures are surfaced, never cached.
			return nil, err
		}
		c.positives.Add(key, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// Recent implements Store.
func (c *CachedStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	return c.inner.Recent(ctx, limit)
}

// All implements Store.
func (c *CachedStore) All(ctx context.Context) ([]Record, error) {
	return c.inner.All(ctx)
}

// Query implements QueryStore.
func (c *CachedStore) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	return c.inner.Query(ctx, filter)
}

// Stats implements QueryStore.
func (c *CachedStore) Stats(ctx context.Context) (*Stats, error) {
	return c.inner.Stats(ctx)
}

// VerifyIntegrity implements Store. Integrity checks must see the file as it
// is, so the cache is never consulted.
func (c *CachedStore) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	return c.inner.VerifyIntegrity(ctx)
}
