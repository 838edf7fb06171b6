package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/kafka"
)

func newIndexer() *indexer.Indexer {
	return indexer.New(indexer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestHandleMessage_DeferredUpsert(t *testing.T) {
	ix := newIndexer()
	handle := HandleMessage(ix, false)

	require.NoError(t, handle(context.Background(), []byte("1"), []byte(`{"op":"upsert","id":1,"text":"inverted index"}`)))

	text, ok := ix.Document(1)
	require.True(t, ok)
	assert.Equal(t, "inverted index", text)
	assert.Empty(t, ix.Search("index"), "deferred upserts wait for a build")

	ix.BuildIndex()
	assert.Equal(t, []ranker.ScoredDoc{{DocID: 1, Score: 1}}, ix.Search("index"))
}

func TestHandleMessage_IncrementalUpsertAndDelete(t *testing.T) {
	ix := newIndexer()
	handle := HandleMessage(ix, true)
	ctx := context.Background()

	require.NoError(t, handle(ctx, nil, []byte(`{"op":"upsert","id":5,"text":"searching"}`)))
	assert.Equal(t, []ranker.ScoredDoc{{DocID: 5, Score: 1}}, ix.Search("search"))

	require.NoError(t, handle(ctx, nil, []byte(`{"op":"delete","id":5}`)))
	assert.Empty(t, ix.Search("search"))
	assert.Equal(t, 0, ix.Len())

	// deleting again is harmless
	require.NoError(t, handle(ctx, nil, []byte(`{"op":"delete","id":5}`)))
}

func TestHandleMessage_EmptyTextIsValid(t *testing.T) {
	ix := newIndexer()
	require.NoError(t, HandleMessage(ix, true)(context.Background(), nil, []byte(`{"op":"upsert","id":2,"text":""}`)))
	assert.Equal(t, 1, ix.Len())
}

func TestHandleMessage_SkipsBadEvents(t *testing.T) {
	ix := newIndexer()
	handle := HandleMessage(ix, true)

	tests := []struct {
		name    string
		value   string
		invalid bool
	}{
		{"not json", `{{`, false},
		{"missing text", `{"op":"upsert","id":1}`, true},
		{"null text", `{"op":"upsert","id":1,"text":null}`, true},
		{"missing id", `{"op":"delete"}`, true},
		{"unknown op", `{"op":"merge","id":1,"text":"x"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handle(context.Background(), nil, []byte(tt.value))
			require.Error(t, err)
			assert.True(t, errors.Is(err, kafka.ErrSkip))
			assert.Equal(t, tt.invalid, apperrors.IsInvalidArgument(err))
		})
	}
	assert.Equal(t, 0, ix.Len())
}
