package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/segment"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/source"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search node",
		"port", cfg.Server.Port,
		"incremental", cfg.Indexer.Incremental,
		"cache_backend", cfg.Cache.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	ix := indexer.New(indexer.WithMetrics(m))
	checker := health.NewChecker(5 * time.Second)
	checker.Register("indexer", func(ctx context.Context) health.ComponentHealth {
		st := ix.Stats()
		if !st.Built && st.Documents > 0 && !cfg.Indexer.Incremental {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "waiting for first build"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents, %d terms", st.Generation, st.Documents, st.Terms),
		}
	})

	if cfg.Postgres.Enabled() {
		closePostgres, err := loadFromPostgres(ctx, cfg.Postgres, ix, checker)
		if err != nil {
			slog.Error("failed to load documents from postgres", "error", err)
			os.Exit(1)
		}
		defer closePostgres()
		ix.BuildIndex()
	}

	queryCache, closeCache := newQueryCache(ctx, cfg, m, checker)
	defer closeCache()

	var wg sync.WaitGroup
	var publisher analytics.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Analytics)
		defer producer.Close()
		publisher = producer

		docConsumer := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents,
			consumer.HandleMessage(ix, cfg.Indexer.Incremental)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := docConsumer.Start(ctx); err != nil {
				slog.Error("document consumer stopped", "error", err)
			}
		}()
		checker.RegisterOptional("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
		slog.Info("kafka enabled",
			"brokers", cfg.Kafka.Brokers,
			"documents_topic", cfg.Kafka.Topics.Documents,
			"analytics_topic", cfg.Kafka.Topics.Analytics,
		)
	}

	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(aggregator, publisher, 10000, 100, time.Second)
	collector.Start(ctx)

	buildDone := ix.StartBuildLoop(ctx, cfg.Indexer.BuildInterval)

	mux := http.NewServeMux()
	ingesthandler.New(ix, cfg.Indexer.Incremental).Register(mux)
	searchhandler.New(ix, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.Recover,
		middleware.RequestID,
		middleware.Logging,
		middleware.Metrics(m),
		middleware.CORS(middleware.DefaultCORSConfig()),
	}
	if rl := cfg.Server.RateLimit; rl.Enabled() {
		limiter := ratelimit.New(rl.Requests, rl.Window)
		go limiter.Run(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter, rl.TrustForwardedFor))
		slog.Info("rate limiting enabled", "requests", rl.Requests, "window", rl.Window,
			"trust_forwarded_for", rl.TrustForwardedFor)
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, mws...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search node listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-buildDone
	wg.Wait()
	collector.Wait()
	if cfg.Indexer.SnapshotDir != "" {
		writeSnapshot(cfg.Indexer.SnapshotDir, ix)
	}
	slog.Info("search node stopped")
}

// newQueryCache builds the configured cache. A Redis backend that cannot be
// reached at startup falls back to the local LRU.
func newQueryCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (*cache.QueryCache, func()) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case "none":
		return nil, noop
	case "redis":
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err == nil {
			checker.RegisterOptional("redis", health.PingCheck(client.Ping))
			slog.Info("search cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
			return cache.New(cache.NewRedisBackend(client, cfg.Redis.CacheTTL, m), m), func() { client.Close() }
		}
		slog.Warn("redis unavailable, falling back to local cache", "error", err)
	}
	size := cfg.Cache.LocalSize
	if size <= 0 {
		size = 1024
	}
	backend, err := cache.NewLocalBackend(size)
	if err != nil {
		slog.Warn("local cache unavailable, search caching disabled", "error", err)
		return nil, noop
	}
	slog.Info("search cache enabled", "backend", "local", "size", size)
	return cache.New(backend, m), noop
}

// loadFromPostgres loads the documents table into ix. The connection stays
// open for the readiness check; the returned func closes it.
func loadFromPostgres(ctx context.Context, cfg config.PostgresConfig, ix *indexer.Indexer, checker *health.Checker) (func(), error) {
	client, err := postgres.New(ctx, cfg, resilience.RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	})
	if err != nil {
		return nil, err
	}
	return loadDocuments(ctx, client, source.NewPostgres(client), ix, checker)
}

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

type documentLoader interface {
	Load(ctx context.Context, sink source.Sink) (source.LoadResult, error)
}

func loadDocuments(ctx context.Context, conn pingCloser, loader documentLoader, sink source.Sink, checker *health.Checker) (func(), error) {
	res, err := loader.Load(ctx, sink)
	if err != nil {
		conn.Close()
		return nil, err
	}
	checker.RegisterOptional("postgres", health.PingCheck(conn.Ping))
	slog.Info("postgres source loaded", "documents", res.Loaded, "skipped", res.Skipped)
	return func() {
		if err := conn.Close(); err != nil {
			slog.Warn("closing postgres connection", "error", err)
		}
	}, nil
}

func writeSnapshot(dir string, ix *indexer.Indexer) {
	entries := ix.Snapshot()
	if len(entries) == 0 {
		slog.Info("index is empty, no snapshot written")
		return
	}
	name, err := segment.NewWriter(dir).Write(entries)
	if err != nil {
		slog.Error("failed to write index snapshot", "dir", dir, "error", err)
		return
	}
	slog.Info("index snapshot written", "dir", dir, "segment", name, "generation", ix.Generation())
}
