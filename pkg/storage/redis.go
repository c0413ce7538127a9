package storage

import (
	"context"
	"strings"
	"time"
)

// RedisClient is the subset of Redis operations the backend needs.
// The interface is compatible with github.com/redis/go-redis/v9, so a
// *redis.Client satisfies it through a thin adapter; keeping it as an
// interface avoids a hard dependency and makes the backend testable.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Result() (string, error)
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// RedisStorage is a Redis-backed key-value backend. It does not emit
// native change events; pair it with the remote hub or Redis keyspace
// notifications at a higher layer if cross-process propagation is needed.
type RedisStorage struct {
	client  RedisClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// RedisStorageOption configures RedisStorage.
type RedisStorageOption func(*redisStorageConfig)

type redisStorageConfig struct {
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// WithRedisPrefix sets the key prefix. Default: "vueuse:kv:".
func WithRedisPrefix(prefix string) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL sets an expiration on stored keys. Zero (the default)
// stores keys without expiration.
func WithRedisTTL(ttl time.Duration) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.ttl = ttl
	}
}

// WithRedisTimeout bounds each Redis call. Default: 5 seconds.
func WithRedisTimeout(d time.Duration) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.timeout = d
	}
}

// NewRedisStorage creates a Redis-backed backend over client.
func NewRedisStorage(client RedisClient, opts ...RedisStorageOption) *RedisStorage {
	cfg := &redisStorageConfig{
		prefix:  "vueuse:kv:",
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStorage{
		client:  client,
		prefix:  cfg.prefix,
		ttl:     cfg.ttl,
		timeout: cfg.timeout,
	}
}

// GetItem returns the value stored under key.
func (r *RedisStorage) GetItem(key string) (string, bool, error) {
	ctx, cancel := r.callContext()
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if isRedisNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetItem stores value under key.
func (r *RedisStorage) SetItem(key, value string) error {
	ctx, cancel := r.callContext()
	defer cancel()

	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// RemoveItem deletes key.
func (r *RedisStorage) RemoveItem(key string) error {
	ctx, cancel := r.callContext()
	defer cancel()

	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisStorage) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// isRedisNil detects go-redis's "key does not exist" sentinel without
// importing the package: redis.Nil stringifies to "redis: nil".
func isRedisNil(err error) bool {
	return err != nil && strings.Contains(err.Error(), "redis: nil")
}
