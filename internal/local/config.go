package local

import (
	"errors"
	"time"
)

type Config struct {
	ServerURL string // OpenAI-compatible endpoint of the local inference server
	APIKey    string

	ModelsDir    string // default: ai_models
	DefaultModel string // catalog name or .gguf path (default: phi3-mini)

	MaxConcurrent int           // concurrent generations (default: 2)
	LoadTimeout   time.Duration // default: 2m
	Params        Params        // default sampling parameters

	// Runtime overrides the server runtime (tests, alternative engines).
	Runtime Runtime
}

func (c *Config) Validate() error {
	if c.ServerURL == "" && c.Runtime == nil {
		return errors.New("ServerURL is required")
	}
	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "ai_models"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "phi3-mini"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 2 * time.Minute
	}
	cfg.Params = cfg.Params.withDefaults(DefaultParams)

	return cfg
}
