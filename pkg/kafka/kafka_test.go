package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_CommitsOnlyHandledOrSkipped(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("ok")},
		{Offset: 2, Value: []byte("fail")},
		{Offset: 3, Value: []byte("skip")},
	}}
	var seen []string
	handler := func(_ context.Context, _ []byte, value []byte) error {
		seen = append(seen, string(value))
		switch string(value) {
		case "fail":
			return errors.New("transient")
		case "skip":
			return ErrSkip
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(r, "documents", handler)
	done := make(chan error)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"ok", "fail", "skip"}, seen)
	assert.Equal(t, []int64{1, 3}, r.commits())
	assert.True(t, r.closed)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		ID int64 `json:"id"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"id":7}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)

	_, err = DecodeJSON[payload]([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrSkip)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "search-analytics")

	require.NoError(t, p.Publish(context.Background(), Event{Key: "k1", Value: map[string]int{"n": 1}}))
	require.NoError(t, p.PublishBatch(context.Background(), nil))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "k1", string(w.msgs[0].Key))
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, map[string]int{"n": 1}, decoded)
}

func TestProducer_WriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, "t")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "broker down")

	err = p.Publish(context.Background(), Event{Key: "bad", Value: make(chan int)})
	assert.ErrorContains(t, err, "marshaling event bad")
}

func TestPing(t *testing.T) {
	require.Error(t, Ping(context.Background(), nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Ping(ctx, []string{"127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka brokers unreachable")
}
