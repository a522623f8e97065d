// Package cache provides the optional Redis-backed segment transcript
// cache. Keys combine media identity, time range, and model, so re-running
// the same media skips the paid remote calls for unchanged segments.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultTTL bounds how long cached segment transcripts stay valid.
const defaultTTL = 30 * 24 * time.Hour

// RedisCache implements the pipeline's transcript cache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection. The model
// name becomes part of every key so cached text never crosses models.
func NewRedisCache(addr, model string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{
		client: client,
		prefix: "transcript:" + model,
		ttl:    defaultTTL,
	}, nil
}

// Get returns the cached transcript for a segment key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, c.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Set stores one segment transcript with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key, text string) error {
	return c.client.Set(ctx, c.redisKey(key), text, c.ttl).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// redisKey hashes the segment key under the model-scoped prefix. Media
// paths can be long and contain separator characters, so they are never
// embedded verbatim.
func (c *RedisCache) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}
