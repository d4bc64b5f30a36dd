package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"syncai-fusion/internal/metrics"
)

// getScript returns the answer and bumps its recency tick.
// KEYS: answers hash, recency zset, clock. ARGV: key.
var getScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
	redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
end
return v
`)

// setScript stores the answer, bumps recency and trims to capacity,
// returning the number of evicted entries.
// KEYS: answers hash, recency zset, clock. ARGV: key, answer, capacity.
var setScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
local excess = redis.call('ZCARD', KEYS[2]) - tonumber(ARGV[3])
if excess <= 0 then
	return 0
end
local oldest = redis.call('ZPOPMIN', KEYS[2], excess)
for i = 1, #oldest, 2 do
	redis.call('HDEL', KEYS[1], oldest[i])
end
return excess
`)

// RedisAnswerCache implements AnswerCache on Redis with the same LRU
// semantics as the memory cache, so several processes can share answers.
type RedisAnswerCache struct {
	client   *redis.Client
	capacity int

	answersKey string
	recencyKey string
	clockKey   string
}

type RedisConfig struct {
	Prefix   string
	Capacity int
}

// NewRedisAnswerCache creates a Redis-backed cache.
func NewRedisAnswerCache(client *redis.Client, config RedisConfig) *RedisAnswerCache {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "syncai"
	}
	// hash tag keeps all three keys in one cluster slot for the scripts
	tag := "{" + prefix + "}"

	return &RedisAnswerCache{
		client:     client,
		capacity:   capacity,
		answersKey: tag + ":answers",
		recencyKey: tag + ":recency",
		clockKey:   tag + ":clock",
	}
}

func (c *RedisAnswerCache) keys() []string {
	return []string{c.answersKey, c.recencyKey, c.clockKey}
}

// Get retrieves an answer from Redis cache.
// On Redis error, it returns ("", false, err) so caller can log and treat as miss.
func (c *RedisAnswerCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context error: %w", err)
	}

	answer, err := getScript.Run(ctx, c.client, c.keys(), key).Text()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}

	return answer, true, nil
}

// Set stores an answer and trims the least recently used entries.
func (c *RedisAnswerCache) Set(ctx context.Context, key string, answer string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	evicted, err := setScript.Run(ctx, c.client, c.keys(), key, answer, c.capacity).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if evicted > 0 {
		metrics.CacheEvictionsTotal.Add(float64(evicted))
	}

	return nil
}

// Len returns the number of cached answers.
func (c *RedisAnswerCache) Len(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, c.answersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen failed: %w", err)
	}
	return int(n), nil
}

// Clear drops every cached answer and the recency index.
func (c *RedisAnswerCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.keys()...).Err(); err != nil {
		return fmt.Errorf("redis clear failed: %w", err)
	}
	return nil
}

func (c *RedisAnswerCache) Capacity() int {
	return c.capacity
}

// Ping checks if Redis connection is healthy.
func (c *RedisAnswerCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisAnswerCache) Close() error {
	return c.client.Close()
}
