package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, reset time.Duration, transitions *[]string) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
		OnStateChange: func(_ string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(3, time.Minute, &transitions)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(2, time.Minute, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Empty(t, transitions)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(1, 10*time.Second, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	clock.advance(10 * time.Second)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(1, 10*time.Second, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	clock.advance(11 * time.Second)
	_ = cb.Execute(func() error { return errBoom })

	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(1, time.Hour, &transitions)
	_ = cb.Execute(func() error { return errBoom })

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_SucceedsEventually(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), "op", fastRetry(5), func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fastRetry(4), func(context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "all 4 attempts failed for op")
	assert.Equal(t, 4, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fastRetry(5), func(context.Context) error {
		calls++
		return Permanent(errBoom)
	})
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	err := Retry(ctx, "op", cfg, func(context.Context) error {
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelay_CappedAtMax(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}.withDefaults()
	assert.Equal(t, 3*time.Second, computeDelay(5, cfg))
	assert.Equal(t, time.Second, computeDelay(1, cfg))
	assert.Equal(t, 10*time.Second, computeDelay(2, RetryConfig{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 10}.withDefaults()))
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "slow")

	err = WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	err = WithTimeout(context.Background(), 0, "direct", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestWithTimeoutValue(t *testing.T) {
	v, err := WithTimeoutValue(context.Background(), time.Second, "get", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = WithTimeoutValue(context.Background(), 5*time.Millisecond, "get", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 7, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, v)
}
