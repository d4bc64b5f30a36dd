package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"syncai-fusion/internal/cache"
	"syncai-fusion/internal/fusion"
	"syncai-fusion/internal/local"
	"syncai-fusion/internal/remote"
)

// Config holds all fusiond configuration.
type Config struct {
	ListenAddr string       `yaml:"listen_addr"`
	Log        LogConfig    `yaml:"log"`
	Server     ServerConfig `yaml:"server"`
	Remote     RemoteConfig `yaml:"remote"`
	Local      LocalConfig  `yaml:"local"`
	Fusion     FusionConfig `yaml:"fusion"`
	Cache      CacheConfig  `yaml:"cache"`
}

type LogConfig struct {
	Env   string `yaml:"env"` // dev | prod
	Level string `yaml:"level"`
}

// ServerConfig bounds inbound HTTP requests.
type ServerConfig struct {
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RemoteConfig is the workspace inference service (Backend A).
type RemoteConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	DefaultWorkspace string        `yaml:"default_workspace"`
	WorkspacePrefix  string        `yaml:"workspace_prefix"`
	Mode             string        `yaml:"mode"`
	DebugThinking    bool          `yaml:"debug_thinking"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
}

// LocalConfig is the local inference server (Backend B).
type LocalConfig struct {
	ServerURL     string        `yaml:"server_url"`
	APIKey        string        `yaml:"api_key"`
	ModelsDir     string        `yaml:"models_dir"`
	DefaultModel  string        `yaml:"default_model"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
	// Preload loads the default model at startup and fails fast when it is
	// missing.
	Preload     bool    `yaml:"preload"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type FusionConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	BackendTimeout time.Duration        `yaml:"backend_timeout"`
	FusionTimeout  time.Duration        `yaml:"fusion_timeout"`
	Scoring        fusion.ScoringConfig `yaml:"scoring"`
}

type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Backend       string `yaml:"backend"` // memory | redis
	Capacity      int    `yaml:"capacity"`
	Prefix        string `yaml:"prefix"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	fd := fusion.DefaultConfig()
	return &Config{
		ListenAddr: ":8000",
		Log: LogConfig{
			Env:   "prod",
			Level: "info",
		},
		Server: ServerConfig{
			RequestTimeout:  2 * time.Minute,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			BaseURL:          "http://localhost:3001",
			DefaultWorkspace: "syncai",
			WorkspacePrefix:  "syncai-",
			Mode:             remote.ModeChat,
			Timeout:          60 * time.Second,
			MaxRetries:       2,
		},
		Local: LocalConfig{
			ServerURL:     "http://127.0.0.1:8080/v1",
			ModelsDir:     "ai_models",
			DefaultModel:  "phi3-mini",
			MaxConcurrent: 2,
			LoadTimeout:   2 * time.Minute,
			Temperature:   local.DefaultParams.Temperature,
			TopP:          local.DefaultParams.TopP,
			MaxTokens:     local.DefaultParams.MaxTokens,
		},
		Fusion: FusionConfig{
			Enabled:        fd.FusionEnabled,
			BackendTimeout: fd.BackendTimeout,
			FusionTimeout:  fd.FusionTimeout,
			Scoring:        fd.Scoring,
		},
		Cache: CacheConfig{
			Enabled:   fd.CachingEnabled,
			Backend:   "memory",
			Capacity:  fd.CacheCapacity,
			Prefix:    "fusion",
			RedisAddr: "localhost:6379",
		},
	}
}

// Load reads a YAML config file, expands ${ENV} references and applies
// environment overrides. An empty path yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment. The
// ANYTHINGLLM_* names are accepted for existing deployments; the newer
// names win when both are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
			}
		}
	}

	str(&c.Remote.APIKey, "ANYTHINGLLM_API_KEY", "REMOTE_API_KEY")
	str(&c.Remote.BaseURL, "ANYTHINGLLM_BASE_URL", "REMOTE_BASE_URL")
	str(&c.Remote.DefaultWorkspace, "ANYTHINGLLM_WORKSPACE_SLUG", "REMOTE_DEFAULT_WORKSPACE")
	str(&c.Local.ServerURL, "LOCAL_SERVER_URL")
	str(&c.Local.ModelsDir, "LOCAL_MODELS_DIR")
	str(&c.Cache.Backend, "CACHE_BACKEND")
	str(&c.Cache.RedisAddr, "REDIS_ADDR")
	str(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	str(&c.ListenAddr, "LISTEN_ADDR")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Env, "ENV")

	for _, k := range []string{"ANYTHINGLLM_DEBUG_THINKING", "REMOTE_DEBUG_THINKING"} {
		v, ok := lookup(k)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", k, err)
		}
		c.Remote.DebugThinking = b
	}
	return nil
}

// Validate reports every invalid field. A missing remote API key is
// returned as remote.ErrMissingAPIKey so callers can tell it apart.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote.APIKey) == "" {
		return fmt.Errorf("config: %w", remote.ErrMissingAPIKey)
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.Log),
		validation.Field(&c.Server),
		validation.Field(&c.Remote),
		validation.Field(&c.Local),
		validation.Field(&c.Fusion),
		validation.Field(&c.Cache),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Env, validation.In("", "dev", "development", "prod", "production")),
		validation.Field(&l.Level, validation.In("", "debug", "info", "warn", "error")),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.RequestTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&s.MaxBodyBytes, validation.Required, validation.Min(int64(1024))),
		validation.Field(&s.ShutdownTimeout, validation.Required),
	)
}

func (r RemoteConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BaseURL, validation.Required, is.URL),
		validation.Field(&r.DefaultWorkspace, validation.Required),
		validation.Field(&r.Mode, validation.In(remote.ModeChat, remote.ModeQuery)),
		validation.Field(&r.Timeout, validation.Required),
		validation.Field(&r.MaxRetries, validation.Min(0), validation.Max(10)),
	)
}

func (l LocalConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.ServerURL, validation.Required, is.URL),
		validation.Field(&l.DefaultModel, validation.Required),
		validation.Field(&l.MaxConcurrent, validation.Required, validation.Min(1)),
		validation.Field(&l.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&l.TopP, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&l.MaxTokens, validation.Min(0)),
	)
}

func (f FusionConfig) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.BackendTimeout, validation.Required),
		validation.Field(&f.FusionTimeout, validation.Required),
	)
	if err != nil {
		return err
	}
	return f.Scoring.Validate()
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In("memory", "redis")),
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.RedisAddr, validation.When(c.Backend == "redis", validation.Required)),
	)
}

// RemoteClientConfig converts to the remote client configuration.
func (c *Config) RemoteClientConfig() remote.Config {
	return remote.Config{
		BaseURL:          c.Remote.BaseURL,
		APIKey:           c.Remote.APIKey,
		DefaultWorkspace: c.Remote.DefaultWorkspace,
		WorkspacePrefix:  c.Remote.WorkspacePrefix,
		Mode:             c.Remote.Mode,
		DebugThinking:    c.Remote.DebugThinking,
		UpstreamTimeout:  c.Remote.Timeout,
		MaxRetries:       c.Remote.MaxRetries,
	}
}

func (c *Config) LocalClientConfig() local.Config {
	return local.Config{
		ServerURL:     c.Local.ServerURL,
		APIKey:        c.Local.APIKey,
		ModelsDir:     c.Local.ModelsDir,
		DefaultModel:  c.Local.DefaultModel,
		MaxConcurrent: c.Local.MaxConcurrent,
		LoadTimeout:   c.Local.LoadTimeout,
		Params:        c.localParams(),
	}
}

func (c *Config) localParams() local.Params {
	return local.Params{
		Temperature: c.Local.Temperature,
		TopP:        c.Local.TopP,
		MaxTokens:   c.Local.MaxTokens,
	}
}

func (c *Config) EngineConfig() fusion.Config {
	return fusion.Config{
		FusionEnabled:  c.Fusion.Enabled,
		CachingEnabled: c.Cache.Enabled,
		BackendTimeout: c.Fusion.BackendTimeout,
		FusionTimeout:  c.Fusion.FusionTimeout,
		CacheCapacity:  c.Cache.Capacity,
		LocalParams:    c.localParams(),
		Scoring:        c.Fusion.Scoring,
	}
}

func (c *Config) AnswerCacheConfig() cache.Config {
	return cache.Config{
		Backend:  c.Cache.Backend,
		Capacity: c.Cache.Capacity,
		Prefix:   c.Cache.Prefix,
	}
}

// IsValidationError reports whether err came from field validation.
func IsValidationError(err error) bool {
	var verrs validation.Errors
	return errors.As(err, &verrs)
}
