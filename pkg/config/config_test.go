package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "local", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Second, cfg.Indexer.BuildInterval)
	assert.False(t, cfg.Postgres.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9001
indexer:
  buildInterval: 250ms
  incremental: true
search:
  defaultLimit: 5
  maxResults: 50
cache:
  backend: none
kafka:
  brokers: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Indexer.BuildInterval)
	assert.True(t, cfg.Indexer.Incremental)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// untouched sections keep defaults
	assert.Equal(t, "documents", cfg.Kafka.Topics.Documents)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TS_SERVER_PORT", "7070")
	t.Setenv("TS_CACHE_BACKEND", "redis")
	t.Setenv("TS_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("TS_INDEXER_INCREMENTAL", "true")
	t.Setenv("TS_POSTGRES_HOST", "db.internal")
	t.Setenv("TS_SERVER_RATE_LIMIT_TRUST_FORWARDED_FOR", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Indexer.Incremental)
	assert.True(t, cfg.Postgres.Enabled())
	assert.True(t, cfg.Server.RateLimit.TrustForwardedFor)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }, "defaultLimit"},
		{"max below default", func(c *Config) { c.Search.MaxResults = 1 }, "maxResults"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "unknown cache backend"},
		{"local without size", func(c *Config) { c.Cache.LocalSize = 0 }, "localSize"},
		{"negative interval", func(c *Config) { c.Indexer.BuildInterval = -time.Second }, "buildInterval"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit.Requests = -1 }, "rateLimit.requests"},
		{"rate limit without window", func(c *Config) {
			c.Server.RateLimit = RateLimitConfig{Requests: 10}
		}, "rateLimit.window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", p.DSN())
}

func TestLoad_DevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Cache.Backend)
	assert.False(t, cfg.Server.RateLimit.Enabled())
	assert.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
	assert.False(t, cfg.Server.RateLimit.TrustForwardedFor)
	assert.False(t, cfg.Postgres.Enabled())
	assert.Equal(t, "search-analytics", cfg.Kafka.Topics.Analytics)
}
