package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/resilience"
)

// redisClient is the subset of *pkgredis.Client the backend uses.
type redisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// RedisBackend stores results in Redis with a TTL. Every call goes through a
// circuit breaker and a per-call timeout so a slow or dead Redis degrades
// searches to uncached instead of stalling them.
type RedisBackend struct {
	client    redisClient
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
}

// NewRedisBackend wraps client. If m is non-nil the breaker state is
// exported as circuit_breaker_state{name="redis-cache"}.
func NewRedisBackend(client redisClient, ttl time.Duration, m *metrics.Metrics) *RedisBackend {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("redis-cache").Set(float64(resilience.StateClosed))
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &RedisBackend{
		client:    client,
		ttl:       ttl,
		opTimeout: 100 * time.Millisecond,
		breaker:   resilience.NewCircuitBreaker("redis-cache", cfg),
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.breaker.Execute(func() error {
		v, err := resilience.WithTimeoutValue(ctx, b.opTimeout, "redis-get", func(ctx context.Context) ([]byte, error) {
			return b.client.Get(ctx, key)
		})
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		value = v
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, b.opTimeout, "redis-set", func(ctx context.Context) error {
			return b.client.Set(ctx, key, value, b.ttl)
		})
	})
}

// DeletePrefix bypasses the per-call timeout since a SCAN over a large
// keyspace can legitimately take a while.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := b.breaker.Execute(func() error {
		var err error
		n, err = b.client.DeletePrefix(ctx, prefix)
		return err
	})
	return n, err
}

func (b *RedisBackend) BreakerState() resilience.State {
	return b.breaker.GetState()
}
