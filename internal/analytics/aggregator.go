package analytics

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// maxTrackedKeys bounds each per-query and per-term counter. The least
// recently seen key is evicted first.
const maxTrackedKeys = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	EmptyQueryCount   int64        `json:"empty_query_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics in memory.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	zeroResults       int64
	emptyQueries      int64
	latencies         []int64
	next              int
	queryCounts       *counter
	termCounts        *counter
	zeroResultQueries *counter
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       newCounter(maxTrackedKeys),
		termCounts:        newCounter(maxTrackedKeys),
		zeroResultQueries: newCounter(maxTrackedKeys),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

// Record folds one search event into the statistics.
func (a *Aggregator) Record(ev SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if ev.CacheHit {
		a.cacheHits++
	}
	if ev.Type == EventEmptyQuery {
		a.emptyQueries++
	} else if ev.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries.incr(ev.Query)
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if len(ev.Terms) > 0 {
		a.queryCounts.incr(ev.Query)
	}
	for _, term := range ev.Terms {
		a.termCounts.incr(term)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		ZeroResultCount: a.zeroResults,
		EmptyQueryCount: a.emptyQueries,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts.counts(), 10)
	stats.TopTerms = topN(a.termCounts.counts(), 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries.counts(), 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// counter counts occurrences of at most size distinct keys.
type counter struct {
	lru *lru.Cache[string, int64]
}

func newCounter(size int) *counter {
	c, _ := lru.New[string, int64](size)
	return &counter{lru: c}
}

func (c *counter) incr(key string) {
	n, _ := c.lru.Get(key)
	c.lru.Add(key, n+1)
}

func (c *counter) counts() map[string]int64 {
	out := make(map[string]int64, c.lru.Len())
	for _, key := range c.lru.Keys() {
		if n, ok := c.lru.Peek(key); ok {
			out[key] = n
		}
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
