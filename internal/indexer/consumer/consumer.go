// Package consumer applies the documents Kafka feed to an Indexer.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/kafka"
)

// IndexConsumer wraps a Kafka consumer to drive the indexer.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that applies DocumentEvents to ix.
// Upserts are stored for the next build, or indexed immediately when
// incremental is set. Undecodable and invalid events are skipped.
func HandleMessage(ix *indexer.Indexer, incremental bool) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event", "error", err, "key", string(key))
			return err
		}
		if err := validator.ValidateEvent(&event); err != nil {
			return fmt.Errorf("%w: %w", kafka.ErrSkip, err)
		}

		docID := index.DocID(*event.ID)
		switch event.Op {
		case ingestion.OpUpsert:
			if incremental {
				ix.UpdateDocument(docID, *event.Text)
			} else {
				ix.AddDocument(docID, *event.Text)
			}
			logger.Debug("document upserted", "doc_id", docID, "incremental", incremental)
		case ingestion.OpDelete:
			if !ix.RemoveDocument(docID) {
				logger.Debug("delete for unknown document", "doc_id", docID)
			}
		}
		return nil
	}
}
