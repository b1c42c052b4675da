// Package cache holds the latest dispatch snapshot outside the process so restarted
// replicas can serve it before their first pass completes, and keeps per-hospital
// overlays in memory between passes.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSnapshotKey is the Redis key of the latest snapshot
const DefaultSnapshotKey = "dispatch:snapshot"

// ErrMiss is returned when no snapshot is cached
var ErrMiss = errors.New("snapshot cache miss")

// SnapshotCache stores an encoded snapshot
type SnapshotCache interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
}

// NopCache is used when no cache backend is configured. Every lookup misses.
type NopCache struct{}

// Get always misses
func (NopCache) Get(context.Context) ([]byte, error) { return nil, ErrMiss }

// Put discards the data
func (NopCache) Put(context.Context, []byte) error { return nil }

// RedisSnapshotCache keeps the snapshot in Redis with a TTL
type RedisSnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// OpenRedis creates a client for addr. An empty addr returns nil.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisSnapshotCache wraps a Redis client
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, key: DefaultSnapshotKey, ttl: ttl}
}

// WithKey returns a copy of the cache using a different key, so deployments can share
// one Redis database
func (c *RedisSnapshotCache) WithKey(key string) *RedisSnapshotCache {
	cp := *c
	cp.key = key
	return &cp
}

// Get returns the cached snapshot or ErrMiss
func (c *RedisSnapshotCache) Get(ctx context.Context) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores the snapshot, replacing any previous one
func (c *RedisSnapshotCache) Put(ctx context.Context, data []byte) error {
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}
