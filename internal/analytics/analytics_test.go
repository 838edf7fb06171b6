package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func event(query string, terms []string, hits int, cacheHit bool, latency int64) SearchEvent {
	return SearchEvent{
		Type:      Classify(len(terms), hits, cacheHit),
		Query:     query,
		Terms:     terms,
		TotalHits: hits,
		CacheHit:  cacheHit,
		LatencyMs: latency,
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, EventEmptyQuery, Classify(0, 0, false))
	assert.Equal(t, EventZeroResult, Classify(1, 0, true))
	assert.Equal(t, EventCacheHit, Classify(2, 3, true))
	assert.Equal(t, EventSearch, Classify(2, 3, false))
}

func TestAggregator_Stats(t *testing.T) {
	a := NewAggregator()
	a.Record(event("information retrieval", []string{"information", "retrieval"}, 3, false, 4))
	a.Record(event("information retrieval", []string{"information", "retrieval"}, 3, true, 1))
	a.Record(event("zebra", []string{"zebra"}, 0, false, 2))
	a.Record(event("the of", nil, 0, false, 0))

	st := a.Stats()
	assert.Equal(t, int64(4), st.TotalSearches)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(1), st.ZeroResultCount)
	assert.Equal(t, int64(1), st.EmptyQueryCount)
	assert.InDelta(t, 1.75, st.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(4), st.P99LatencyMs)
	assert.Equal(t, []QueryCount{{"information retrieval", 2}, {"zebra", 1}}, st.TopQueries)
	assert.Equal(t, []QueryCount{{"information", 2}, {"retrieval", 2}, {"zebra", 1}}, st.TopTerms)
	assert.Equal(t, []QueryCount{{"zebra", 1}}, st.ZeroResultQueries)
}

func TestAggregator_LatencyWindowIsBounded(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		a.Record(event("q", []string{"q"}, 1, false, 1))
	}
	assert.Len(t, a.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), a.Stats().TotalSearches)
}

func TestAggregator_CountersAreBounded(t *testing.T) {
	a := NewAggregator()
	a.Record(event("popular", []string{"popular"}, 1, false, 1))
	for i := 0; i < maxTrackedKeys+50; i++ {
		q := fmt.Sprintf("query%d", i)
		a.Record(event(q, []string{q}, 0, false, 1))
		if i%100 == 0 {
			a.Record(event("popular", []string{"popular"}, 1, false, 1))
		}
	}

	assert.Equal(t, maxTrackedKeys, a.queryCounts.lru.Len())
	assert.Equal(t, maxTrackedKeys, a.termCounts.lru.Len())
	assert.Equal(t, maxTrackedKeys, a.zeroResultQueries.lru.Len())

	counts := a.queryCounts.counts()
	assert.NotContains(t, counts, "query0")
	assert.Contains(t, counts, fmt.Sprintf("query%d", maxTrackedKeys+49))

	st := a.Stats()
	require.NotEmpty(t, st.TopQueries)
	assert.Equal(t, QueryCount{"popular", 102}, st.TopQueries[0])
	assert.Equal(t, int64(maxTrackedKeys+50), st.ZeroResultCount)
}

func TestCollector_BatchesAndFlushesOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator()
	c := NewCollector(agg, pub, 100, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 5; i++ {
		c.Track(event("q", []string{"q"}, 1, false, 1))
	}
	assert.Eventually(t, func() bool { return pub.total() >= 4 }, time.Second, time.Millisecond)

	cancel()
	c.Wait()
	assert.Equal(t, 5, pub.total())
	assert.Equal(t, int64(5), agg.Stats().TotalSearches)

	var decoded SearchEvent
	data, err := json.Marshal(pub.batches[0][0].Value)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "q", decoded.Query)
	assert.Equal(t, string(EventSearch), pub.batches[0][0].Key)
}

func TestCollector_DropsWhenFull(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(agg, &fakePublisher{}, 1, 10, time.Hour)
	// not started, so the queue never drains
	c.Track(event("a", []string{"a"}, 1, false, 1))
	c.Track(event("b", []string{"b"}, 1, false, 1))

	assert.Equal(t, int64(1), c.Dropped())
	assert.Equal(t, int64(2), agg.Stats().TotalSearches, "dropped events are still aggregated")
}

func TestCollector_WithoutPublisher(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(agg, nil, 0, 0, 0)
	c.Start(context.Background())
	c.Track(event("a", []string{"a"}, 1, false, 1))
	c.Wait()
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestHandler_Stats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event("a", []string{"a"}, 1, false, 1))

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var st AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, int64(1), st.TotalSearches)
}
