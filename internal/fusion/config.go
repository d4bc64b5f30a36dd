package fusion

import (
	"errors"
	"time"

	"syncai-fusion/internal/cache"
	"syncai-fusion/internal/local"
)

type Config struct {
	FusionEnabled  bool
	CachingEnabled bool

	BackendTimeout time.Duration // per backend call in the dual dispatch (default: 30s)
	FusionTimeout  time.Duration // merge pass (default: 30s)
	CacheCapacity  int           // default: 1000

	LocalParams local.Params
	Scoring     ScoringConfig
}

// DefaultConfig has fusion and caching on.
func DefaultConfig() Config {
	return Config{
		FusionEnabled:  true,
		CachingEnabled: true,
		BackendTimeout: 30 * time.Second,
		FusionTimeout:  30 * time.Second,
		CacheCapacity:  cache.DefaultCapacity,
		LocalParams:    local.DefaultParams,
		Scoring:        DefaultScoringConfig(),
	}
}

// WithDefaults fills zero durations, sizes and scoring constants. The
// toggles are taken as given.
func (c *Config) WithDefaults() Config {
	cfg := *c
	def := DefaultConfig()

	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = def.BackendTimeout
	}
	if cfg.FusionTimeout <= 0 {
		cfg.FusionTimeout = def.FusionTimeout
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = def.CacheCapacity
	}
	if cfg.Scoring == (ScoringConfig{}) {
		cfg.Scoring = def.Scoring
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.BackendTimeout <= 0 || c.FusionTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.CacheCapacity <= 0 {
		return errors.New("cache capacity must be positive")
	}
	return c.Scoring.Validate()
}
