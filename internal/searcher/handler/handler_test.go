package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
)

type fixture struct {
	ix      *indexer.Indexer
	cache   *cache.QueryCache
	agg     *analytics.Aggregator
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	f := &fixture{
		ix:      indexer.New(indexer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		agg:     analytics.NewAggregator(),
		metrics: metrics.New(prometheus.NewRegistry()),
		mux:     http.NewServeMux(),
	}
	f.ix.AddDocument(1, "Information retrieval is important for fast search")
	f.ix.AddDocument(2, "Retrieval of information should be efficient")
	f.ix.AddDocument(3, "Search engines use inverted index for retrieval")
	f.ix.BuildIndex()

	if withCache {
		backend, err := cache.NewLocalBackend(16)
		require.NoError(t, err)
		f.cache = cache.New(backend, f.metrics)
	}
	collector := analytics.NewCollector(f.agg, nil, 0, 0, 0)
	New(f.ix, f.cache, collector, f.metrics, 10, 2).Register(f.mux)
	return f
}

func (f *fixture) search(t *testing.T, rawQuery string) (int, SearchResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?"+rawQuery, nil))
	var resp SearchResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec.Code, resp
}

func TestSearch_RanksAndClampsLimit(t *testing.T) {
	f := newFixture(t, false)

	code, resp := f.search(t, "q=information+retrieval&limit=50")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"information", "retrieval"}, resp.Terms)
	assert.Equal(t, 3, resp.TotalHits)
	assert.Equal(t, []ranker.ScoredDoc{{DocID: 1, Score: 2}, {DocID: 2, Score: 2}}, resp.Results)
	assert.Equal(t, uint64(1), resp.Generation)
}

func TestSearch_EmptyQueryIsNotAnError(t *testing.T) {
	f := newFixture(t, true)

	for _, q := range []string{"", "q=", "q=the+of"} {
		code, resp := f.search(t, q)
		require.Equal(t, http.StatusOK, code, q)
		assert.Empty(t, resp.Results)
		assert.NotNil(t, resp.Results)
		assert.Zero(t, resp.TotalHits)
	}
	assert.Equal(t, int64(3), f.agg.Stats().EmptyQueryCount)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("empty_query")))
	assert.Zero(t, f.cache.Stats().Misses, "empty queries never reach the cache")
}

func TestSearch_BadLimit(t *testing.T) {
	f := newFixture(t, false)
	for _, limit := range []string{"0", "-1", "abc"} {
		code, _ := f.search(t, "q=search&limit="+limit)
		assert.Equal(t, http.StatusBadRequest, code, limit)
	}
}

func TestSearch_CachesUntilIndexChanges(t *testing.T) {
	f := newFixture(t, true)

	_, first := f.search(t, "q=retrieval")
	assert.False(t, first.CacheHit)
	_, second := f.search(t, "q=Retrieval!")
	assert.True(t, second.CacheHit, "normalized queries share an entry")
	assert.Equal(t, first.Results, second.Results)

	f.ix.UpdateDocument(4, "retrieval retrieval retrieval")
	_, third := f.search(t, "q=retrieval")
	assert.False(t, third.CacheHit)
	assert.Equal(t, ranker.ScoredDoc{DocID: 4, Score: 3}, third.Results[0])

	assert.Equal(t, int64(1), f.agg.Stats().CacheHits)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics.SearchLatency), "one series per cache status")
}

func TestSearch_ZeroResults(t *testing.T) {
	f := newFixture(t, false)
	code, resp := f.search(t, "q=zebra")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Results)
	assert.Equal(t, int64(1), f.agg.Stats().ZeroResultCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestIndexStats(t *testing.T) {
	f := newFixture(t, false)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st indexer.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 3, st.Documents)
	assert.True(t, st.Built)
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t, true)
	f.search(t, "q=retrieval")
	f.search(t, "q=retrieval")

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	var st cache.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, cache.Stats{Backend: "local", Hits: 1, Misses: 1, HitRate: 0.5}, st)

	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, resp := f.search(t, "q=retrieval")
	assert.False(t, resp.CacheHit)
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	f := newFixture(t, false)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
}

func TestSearch_RequestCancelledStillAnswers(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=retrieval", nil).WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}
