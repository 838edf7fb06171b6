package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/kafka"
)

// Publisher is the subset of *kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector hands events to the aggregator synchronously and queues them for
// Kafka. Track never blocks: when the queue is full the event is dropped from
// the Kafka stream (it is still aggregated).
type Collector struct {
	aggregator    *Aggregator
	publisher     Publisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	logger        *slog.Logger

	startOnce sync.Once
	done      chan struct{}
}

// NewCollector creates a Collector. publisher may be nil, in which case
// events are only aggregated locally.
func NewCollector(agg *Aggregator, publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		aggregator:    agg,
		publisher:     publisher,
		eventCh:       make(chan SearchEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It flushes when a batch fills up or every
// flushInterval, and once more when ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if c.publisher == nil {
			close(c.done)
			return
		}
		go c.run(ctx)
		c.logger.Info("analytics collector started",
			"buffer_size", cap(c.eventCh),
			"batch_size", c.batchSize,
		)
	})
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		}
		batch = make([]kafka.Event, 0, c.batchSize)
	}
	for {
		select {
		case ev := <-c.eventCh:
			batch = append(batch, kafka.Event{Key: string(ev.Type), Value: ev})
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case ev := <-c.eventCh:
					batch = append(batch, kafka.Event{Key: string(ev.Type), Value: ev})
					if len(batch) >= c.batchSize {
						flush(flushCtx)
					}
				default:
					flush(flushCtx)
					return
				}
			}
		}
	}
}

// Track records ev.
func (c *Collector) Track(ev SearchEvent) {
	if c.aggregator != nil {
		c.aggregator.Record(ev)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- ev:
	default:
		if n := c.dropped.Add(1); n%1000 == 1 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", n)
		}
	}
}

// Dropped returns how many events never reached the Kafka queue.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Wait blocks until the publish loop has flushed and exited. Call after
// cancelling the context passed to Start.
func (c *Collector) Wait() {
	<-c.done
}
