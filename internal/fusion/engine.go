package fusion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncai-fusion/internal/cache"
	"syncai-fusion/pkg/logging/logging"
)

// Apology is the only failure a caller of Process ever sees.
const Apology = "Sorry, the AI service is temporarily unavailable. Please try again later."

type Options struct {
	Remote RemoteBackend
	Local  LocalBackend
	// Cache defaults to an in-memory LRU of Config.CacheCapacity entries.
	Cache  cache.AnswerCache
	Config Config
	Logger *zap.Logger
}

// Engine answers each request with both backends and merges the results.
// It is safe for concurrent use.
type Engine struct {
	remote RemoteBackend
	local  LocalBackend
	cache  cache.AnswerCache
	logger *zap.Logger

	// fixed after New; the toggles below override the two flags
	cfg            Config
	fusionEnabled  atomic.Bool
	cachingEnabled atomic.Bool

	stats statsRecorder

	mergePrompt func(t TaskType, question, a, b string) string
}

func New(opts Options) (*Engine, error) {
	if opts.Remote == nil {
		return nil, errors.New("fusion: remote backend is required")
	}
	if opts.Local == nil {
		return nil, errors.New("fusion: local backend is required")
	}

	cfg := opts.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fusion: invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	answers := opts.Cache
	if answers == nil {
		mem, err := cache.NewMemoryAnswerCache(cfg.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("fusion: build cache: %w", err)
		}
		answers = cache.NewLoggingAnswerCache(mem)
	}

	e := &Engine{
		remote: opts.Remote,
		local:  opts.Local,
		cache:  answers,
		logger: logger.Named("fusion"),
		cfg:    cfg,

		mergePrompt: BuildMergePrompt,
	}
	e.fusionEnabled.Store(cfg.FusionEnabled)
	e.cachingEnabled.Store(cfg.CachingEnabled)
	return e, nil
}

// snapshot is the configuration one request runs with.
func (e *Engine) snapshot() Config {
	cfg := e.cfg
	cfg.FusionEnabled = e.fusionEnabled.Load()
	cfg.CachingEnabled = e.cachingEnabled.Load()
	return cfg
}

// Process answers req. It always returns a non-empty string: backend and
// merge failures degrade to a single answer, a heuristic pick or Apology.
func (e *Engine) Process(ctx context.Context, req Request) (answer string) {
	cfg := e.snapshot()
	logger := e.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("target", req.Target),
		zap.String("task_type", string(req.TaskType)),
	)
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("process panicked", zap.Any("panic", r), zap.Stack("stack"))
			answer = Apology
		}
	}()

	key := cache.BuildAnswerKey(req.Text, req.Target).String()
	if cfg.CachingEnabled {
		if cached, ok := e.lookup(ctx, key); ok {
			e.stats.cacheHit()
			logger.Debug("answered from cache")
			return cached
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		e.stats.record(outcomeFallback)
		logger.Warn("empty question")
		return Apology
	}

	answer, kind := e.resolve(ctx, cfg, req)
	e.stats.record(kind)

	if answer == "" {
		return Apology
	}
	if cfg.CachingEnabled {
		e.store(ctx, key, answer)
	}

	logger.Info("request processed",
		zap.String("outcome", kind.String()),
		zap.Int("answer_len", len(answer)),
	)
	return answer
}

// resolve produces the answer for a cache miss. An empty answer means
// nothing usable came back.
func (e *Engine) resolve(ctx context.Context, cfg Config, req Request) (answer string, kind outcomeKind) {
	defer func() {
		if r := recover(); r != nil {
			logging.L(ctx).Error("resolve panicked, retrying remote directly",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			answer, kind = e.lastResort(ctx, cfg, req), outcomeFallback
		}
	}()

	if !cfg.FusionEnabled {
		out := e.askRemote(ctx, cfg.BackendTimeout, "remote", req.Text, req.Target)
		e.stats.remoteLatency(out.elapsed)
		if !out.ok() {
			logging.L(ctx).Warn("remote backend failed", zap.Error(out.err))
			return "", outcomeFallback
		}
		return out.answer, outcomeRemoteOnly
	}

	a, b := e.dualDispatch(ctx, cfg, req)
	switch {
	case a.ok() && b.ok():
		return e.merge(ctx, cfg, req, a.answer, b.answer), outcomeDual
	case a.ok():
		return a.answer, outcomeRemoteOnly
	case b.ok():
		return b.answer, outcomeLocalOnly
	default:
		return "", outcomeFallback
	}
}

// lastResort is one direct remote call after an internal failure.
func (e *Engine) lastResort(ctx context.Context, cfg Config, req Request) string {
	out := e.askRemote(ctx, cfg.BackendTimeout, "remote", req.Text, req.Target)
	if !out.ok() {
		logging.L(ctx).Warn("last resort remote call failed", zap.Error(out.err))
		return ""
	}
	return out.answer
}

func (e *Engine) lookup(ctx context.Context, key string) (string, bool) {
	answer, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok || answer == "" {
		return "", false
	}
	return answer, true
}

func (e *Engine) store(ctx context.Context, key, answer string) {
	if err := e.cache.Set(ctx, key, answer); err != nil {
		logging.L(ctx).Warn("cache store failed", zap.Error(err))
	}
}

func (e *Engine) EnableFusion() {
	e.fusionEnabled.Store(true)
	e.logger.Info("fusion enabled")
}

func (e *Engine) DisableFusion() {
	e.fusionEnabled.Store(false)
	e.logger.Info("fusion disabled")
}

func (e *Engine) FusionEnabled() bool {
	return e.fusionEnabled.Load()
}

func (e *Engine) EnableCaching() {
	e.cachingEnabled.Store(true)
}

func (e *Engine) DisableCaching() {
	e.cachingEnabled.Store(false)
}

func (e *Engine) CachingEnabled() bool {
	return e.cachingEnabled.Load()
}

// ClearCache drops every cached answer.
func (e *Engine) ClearCache(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("fusion: clear cache: %w", err)
	}
	e.logger.Info("cache cleared")
	return nil
}

func (e *Engine) ResetStats() {
	e.stats.reset()
	e.logger.Info("stats reset")
}

// Stats never calls a backend. A cache that cannot report its size shows 0.
func (e *Engine) Stats(ctx context.Context) Stats {
	s := e.stats.snapshot()
	s.FusionEnabled = e.FusionEnabled()
	s.CachingEnabled = e.CachingEnabled()
	s.CacheCapacity = e.cache.Capacity()
	if n, err := e.cache.Len(ctx); err == nil {
		s.CacheSize = n
	}
	return s
}

// Close releases the cache.
func (e *Engine) Close() error {
	if closer, ok := e.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
