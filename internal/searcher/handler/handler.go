// Package handler serves the search API and the index and cache
// introspection endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
)

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Query      string             `json:"query"`
	Terms      []string           `json:"terms"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	Generation uint64             `json:"generation"`
	CacheHit   bool               `json:"cache_hit"`
}

type Handler struct {
	indexer      *indexer.Indexer
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. queryCache, collector and m may each be nil.
func New(ix *indexer.Indexer, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		indexer:      ix,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register adds the search, index stats and cache routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	terms := h.indexer.Analyze(query)
	if len(terms) == 0 {
		resp := SearchResponse{
			Query:      query,
			Terms:      []string{},
			Results:    []ranker.ScoredDoc{},
			Generation: h.indexer.Generation(),
		}
		h.observe(r, resp, limit, start)
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	compute := func() (indexer.Result, error) {
		return h.indexer.SearchLimit(query, limit), nil
	}
	var result indexer.Result
	cacheHit := false
	if h.cache != nil {
		key := cache.Key(terms, limit, h.indexer.Revision())
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "search failed"))
		return
	}

	docs := result.Docs
	if docs == nil {
		docs = []ranker.ScoredDoc{}
	}
	resp := SearchResponse{
		Query:      query,
		Terms:      result.Terms,
		TotalHits:  result.TotalHits,
		Results:    docs,
		Generation: result.Generation,
		CacheHit:   cacheHit,
	}
	h.observe(r, resp, limit, start)
	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// parseLimit applies the default for an absent limit and clamps to the
// configured maximum.
func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.InvalidArgument("limit must be a positive integer, got %q", raw)
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) observe(r *http.Request, resp SearchResponse, limit int, start time.Time) {
	elapsed := time.Since(start)
	eventType := analytics.Classify(len(resp.Terms), resp.TotalHits, resp.CacheHit)

	if h.metrics != nil {
		resultType := "hit"
		switch eventType {
		case analytics.EventEmptyQuery:
			resultType = "empty_query"
		case analytics.EventZeroResult:
			resultType = "zero_result"
		}
		cacheStatus := "miss"
		if resp.CacheHit {
			cacheStatus = "hit"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
	}

	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:       eventType,
			Query:      resp.Query,
			Terms:      resp.Terms,
			TotalHits:  resp.TotalHits,
			Returned:   len(resp.Results),
			Limit:      limit,
			LatencyMs:  elapsed.Milliseconds(),
			CacheHit:   resp.CacheHit,
			Generation: resp.Generation,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(r.Context()),
		})
	}
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.indexer.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "cache invalidation failed: %v", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
