// Package source loads documents from PostgreSQL into the document store.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/postgres"
)

const selectDocuments = `SELECT id, body FROM documents ORDER BY id`

// progressEvery controls how often Load logs progress.
const progressEvery = 10000

// Sink receives loaded documents. *indexer.Indexer satisfies it.
type Sink interface {
	AddDocument(docID index.DocID, text string)
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// LoadResult summarizes one Load.
type LoadResult struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

type PostgresSource struct {
	query  func(ctx context.Context) (rows, error)
	logger *slog.Logger
}

// NewPostgres creates a source reading the documents table through c.
func NewPostgres(c *postgres.Client) *PostgresSource {
	return newPostgres(func(ctx context.Context) (rows, error) {
		return c.DB.QueryContext(ctx, selectDocuments)
	})
}

func newPostgres(query func(ctx context.Context) (rows, error)) *PostgresSource {
	return &PostgresSource{
		query:  query,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// Load streams every row of the documents table into sink in id order.
// Rows with a NULL body are skipped. Documents are only stored; the caller
// decides when to build.
func (s *PostgresSource) Load(ctx context.Context, sink Sink) (LoadResult, error) {
	var res LoadResult
	rs, err := s.query(ctx)
	if err != nil {
		return res, fmt.Errorf("querying documents: %w", err)
	}
	defer rs.Close()

	for rs.Next() {
		var (
			id   int64
			body sql.NullString
		)
		if err := rs.Scan(&id, &body); err != nil {
			return res, fmt.Errorf("scanning document row %d: %w", res.Loaded+res.Skipped+1, err)
		}
		if !body.Valid {
			s.logger.Warn("skipping document with null body", "doc_id", id)
			res.Skipped++
			continue
		}
		sink.AddDocument(index.DocID(id), body.String)
		res.Loaded++
		if res.Loaded%progressEvery == 0 {
			s.logger.Info("loading documents", "loaded", res.Loaded)
		}
	}
	if err := rs.Err(); err != nil {
		return res, fmt.Errorf("iterating documents: %w", err)
	}
	s.logger.Info("documents loaded", "loaded", res.Loaded, "skipped", res.Skipped)
	return res, nil
}
