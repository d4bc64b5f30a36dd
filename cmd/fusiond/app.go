package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"syncai-fusion/internal/cache"
	"syncai-fusion/internal/config"
	"syncai-fusion/internal/fusion"
	"syncai-fusion/internal/local"
	"syncai-fusion/internal/remote"
)

// app is the wired service: both backends, the answer cache and the engine.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	remote remote.Client
	local  *local.Client
	engine *fusion.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	remoteClient, err := remote.NewClient(cfg.RemoteClientConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("remote client: %w", err)
	}

	localClient, err := local.NewClient(cfg.LocalClientConfig(), logger)
	if err != nil {
		_ = remoteClient.Close()
		return nil, fmt.Errorf("local client: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		remote: remoteClient,
		local:  localClient,
	}

	if cfg.Local.Preload {
		if err := localClient.EnsureLoaded(ctx, cfg.Local.DefaultModel); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	answers, err := newAnswerCache(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engine, err := fusion.New(fusion.Options{
		Remote: remoteClient,
		Local:  localClient,
		Cache:  answers,
		Config: cfg.EngineConfig(),
		Logger: logger,
	})
	if err != nil {
		_ = answers.Close()
		_ = a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

// newAnswerCache builds the configured backend. Redis is pinged up front so
// a bad address fails at startup.
func newAnswerCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cache.LoggingAnswerCache, error) {
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			logger.Error("redis connection failed", zap.Error(err))
			return nil, fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.Cache.RedisAddr),
		)
	}

	answers, err := cache.NewAnswerCache(cfg.AnswerCacheConfig(), redisClient)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	return cache.NewLoggingAnswerCache(answers), nil
}

// Close releases the engine's cache, the local model and the remote pool.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	errs = append(errs, a.local.Close(), a.remote.Close())
	return errors.Join(errs...)
}
