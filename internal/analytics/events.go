// Package analytics records what users search for. Every search produces a
// SearchEvent that is folded into an in-process Aggregator and, when Kafka
// is configured, published to the analytics topic in batches.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventEmptyQuery EventType = "empty_query"
)

type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	Limit      int       `json:"limit"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Classify picks the event type for a completed search.
func Classify(terms int, totalHits int, cacheHit bool) EventType {
	switch {
	case terms == 0:
		return EventEmptyQuery
	case totalHits == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventSearch
	}
}
