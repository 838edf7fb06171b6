// Package cache caches ranked search results. Keys are derived from the
// processed query terms, the result limit, and the index revision, so any
// change to the live index makes older entries unreachable without an
// explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
)

const keyPrefix = "search:"

// Backend stores encoded results. Get reports a miss with ok == false and a
// nil error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type QueryCache struct {
	backend Backend
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache over backend. m may be nil.
func New(backend Backend, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
}

// Key builds the cache key for a processed query.
func Key(terms []string, limit int, revision uint64) string {
	raw := fmt.Sprintf("%s|%d|%d", strings.Join(terms, ","), limit, revision)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Get returns the cached result for key. Backend and decode errors are logged
// and reported as a miss.
func (c *QueryCache) Get(ctx context.Context, key string) (indexer.Result, bool) {
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if !ok || err != nil {
		c.recordMiss()
		return indexer.Result{}, false
	}
	var result indexer.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return indexer.Result{}, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key)
	return result, true
}

// Set stores result under key. Failures are logged only.
func (c *QueryCache) Set(ctx context.Context, key string, result indexer.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or calls compute and caches
// its result. Concurrent misses on one key share a single compute call. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() (indexer.Result, error)) (indexer.Result, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(context.WithoutCancel(ctx), key, result)
		return result, nil
	})
	if err != nil {
		return indexer.Result{}, false, err
	}
	return val.(indexer.Result), false, nil
}

// Invalidate drops every cached search result and returns how many entries
// were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Backend: c.backend.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
