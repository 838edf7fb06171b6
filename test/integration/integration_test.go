//go:build integration

// Package integration exercises the search node against real PostgreSQL and
// Redis instances. Tests skip when a service is unavailable.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/source"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/resilience"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "textsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "textsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg, resilience.RetryConfig{MaxAttempts: 1})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := pkgredis.NewClient(ctx, config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 2,
	})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func quietIndexer() *indexer.Indexer {
	return indexer.New(indexer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestPostgresSource_LoadsDocumentsTable(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	err := db.InTx(ctx, nil, func(tx *sql.Tx) error {
		stmts := []string{
			`DROP TABLE IF EXISTS documents`,
			`CREATE TABLE documents (id BIGINT PRIMARY KEY, body TEXT)`,
			`INSERT INTO documents (id, body) VALUES
				(3, 'Search engines use inverted index for retrieval'),
				(1, 'Information retrieval is important for fast search'),
				(2, 'Retrieval of information should be efficient'),
				(4, NULL)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.DB.Exec(`DROP TABLE IF EXISTS documents`) })

	ix := quietIndexer()
	res, err := source.NewPostgres(db).Load(ctx, ix)
	require.NoError(t, err)
	assert.Equal(t, source.LoadResult{Loaded: 3, Skipped: 1}, res)

	ix.BuildIndex()
	assert.Equal(t, []ranker.ScoredDoc{
		{DocID: 1, Score: 2},
		{DocID: 2, Score: 2},
		{DocID: 3, Score: 1},
	}, ix.Search("information retrieval"))
}

func TestRedisBackend_CachesAndInvalidates(t *testing.T) {
	client := skipIfNoRedis(t)
	ctx := context.Background()

	qc := cache.New(cache.NewRedisBackend(client, time.Minute, nil), nil)
	_, err := qc.Invalidate(ctx)
	require.NoError(t, err)

	ix := quietIndexer()
	ix.AddDocument(1, "redis backed cache")
	ix.BuildIndex()

	key := cache.Key(ix.Analyze("cache"), 10, ix.Revision())
	compute := func() (indexer.Result, error) { return ix.SearchLimit("cache", 10), nil }

	first, hit, err := qc.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := qc.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	deleted, err := qc.Invalidate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	_, hit, err = qc.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
}
