package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/config"
)

func TestNewClient_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// port 1 is reserved and never has a Redis listening
	_, err := NewClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1", PoolSize: 1})
	assert.ErrorContains(t, err, "redis ping failed")
}
