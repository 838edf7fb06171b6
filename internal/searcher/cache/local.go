package cache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LocalBackend keeps results in a fixed-size in-process LRU.
type LocalBackend struct {
	lru *lru.Cache[string, []byte]
}

func NewLocalBackend(size int) (*LocalBackend, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	return &LocalBackend{lru: c}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte) error {
	b.lru.Add(key, value)
	return nil
}

func (b *LocalBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, key := range b.lru.Keys() {
		if strings.HasPrefix(key, prefix) && b.lru.Remove(key) {
			n++
		}
	}
	return n, nil
}

func (b *LocalBackend) Len() int {
	return b.lru.Len()
}

// NoopBackend never stores anything. It is used when caching is disabled.
type NoopBackend struct{}

func (NoopBackend) Name() string { return "none" }

func (NoopBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoopBackend) Set(context.Context, string, []byte) error { return nil }

func (NoopBackend) DeletePrefix(context.Context, string) (int64, error) { return 0, nil }
