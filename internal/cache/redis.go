// Package cache implements the optional Redis read-through accelerator the
// Resolver consults between the Bloom Filter fast path and the Persistent
// Store (spec_full §4.4). It is not part of spec.md's core contract: a
// cache miss is never an error, and disabling it changes performance only
// (P11), never correctness.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// codePrefix namespaces short-code cache keys.
	codePrefix = "shortcore:code:"
	// defaultTTL bounds how long a resolved URL is cached before the next
	// request falls through to PS again.
	defaultTTL = 24 * time.Hour
)

// RedisCache wraps a pooled Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies connectivity before
// returning, matching the teacher's startup-time health check.
func NewRedisCache(addr, password string, db, poolSize int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the cached URL for code, or ("", false, nil) on a cache miss.
func (c *RedisCache) Get(ctx context.Context, code string) (string, bool, error) {
	val, err := c.client.Get(ctx, codePrefix+code).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get failed: %w", err)
	}
	return val, true, nil
}

// Set caches url under code with the default TTL.
func (c *RedisCache) Set(ctx context.Context, code, url string) error {
	if err := c.client.Set(ctx, codePrefix+code, url, defaultTTL).Err(); err != nil {
		return fmt.Errorf("cache: set failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
