package cache

import (
	"context"
	"strings"
	"time"

	"syncai-fusion/internal/metrics"
	"syncai-fusion/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingAnswerCache wraps an AnswerCache with logging + metrics.
type LoggingAnswerCache struct {
	inner AnswerCache
}

// NewLoggingAnswerCache returns a cache that logs and records metrics.
func NewLoggingAnswerCache(inner AnswerCache) *LoggingAnswerCache {
	return &LoggingAnswerCache{inner: inner}
}

// Unwrap returns the decorated cache.
func (c *LoggingAnswerCache) Unwrap() AnswerCache {
	return c.inner
}

func (c *LoggingAnswerCache) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	answer, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()

	fields := append(keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("answer_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("answer_cache_get", fields...)
	}

	return answer, ok, err
}

func (c *LoggingAnswerCache) Set(ctx context.Context, key string, answer string) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, answer)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := append(keyFields(key),
		zap.Int("answer_len", len(answer)),
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("answer_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("answer_cache_set", fields...)
	}

	return err
}

func (c *LoggingAnswerCache) Len(ctx context.Context) (int, error) {
	return c.inner.Len(ctx)
}

func (c *LoggingAnswerCache) Clear(ctx context.Context) error {
	err := c.inner.Clear(ctx)
	if err != nil {
		logging.L(ctx).Error("answer_cache_clear", zap.Error(err))
	} else {
		logging.L(ctx).Info("answer_cache_clear")
	}
	return err
}

func (c *LoggingAnswerCache) Capacity() int {
	return c.inner.Capacity()
}

// Close closes the inner cache when it holds resources.
func (c *LoggingAnswerCache) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func keyFields(key string) []zap.Field {
	fields := []zap.Field{
		zap.String("cache_tier", "answer"),
		zap.String("hash_key", key),
	}
	if parts, ok := parseAnswerKey(key); ok {
		fields = append(fields,
			zap.String("workspace", parts.workspace),
			zap.String("hash", parts.hash),
		)
	}
	return fields
}

// --- helpers for parsing AnswerKey.String() ---

type answerKeyParts struct {
	workspace string
	hash      string
}

// Expecting: answer:<WORKSPACE>:<HASH>
// The workspace may itself contain colons, the hash never does.
func parseAnswerKey(key string) (answerKeyParts, bool) {
	rest, ok := strings.CutPrefix(key, "answer:")
	if !ok {
		return answerKeyParts{}, false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return answerKeyParts{}, false
	}
	return answerKeyParts{
		workspace: rest[:i],
		hash:      rest[i+1:],
	}, true
}
