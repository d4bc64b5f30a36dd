package cache

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend  string // "memory" or "redis"
	Capacity int
	Prefix   string
}

// NewAnswerCache picks the backend named in cfg.
func NewAnswerCache(cfg Config, redisClient *redis.Client) (AnswerCache, error) {
	switch cfg.Backend {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("cache: redis backend selected without a redis client")
		}
		return NewRedisAnswerCache(redisClient, RedisConfig{
			Prefix:   cfg.Prefix,
			Capacity: cfg.Capacity,
		}), nil
	default:
		return NewMemoryAnswerCache(cfg.Capacity)
	}
}
