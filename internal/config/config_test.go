package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncai-fusion/internal/remote"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fusiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("TEST_FUSION_KEY", "secret-from-env")

	path := writeConfig(t, `
listen_addr: ":9000"
remote:
  base_url: http://anythingllm:3001
  api_key: ${TEST_FUSION_KEY}
fusion:
  backend_timeout: 12s
  scoring:
    tie_margin: 0.2
cache:
  capacity: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "secret-from-env", cfg.Remote.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Fusion.BackendTimeout)
	assert.Equal(t, 30*time.Second, cfg.Fusion.FusionTimeout, "unset fields keep defaults")
	assert.Equal(t, 0.2, cfg.Fusion.Scoring.TieMargin)
	assert.Equal(t, 50, cfg.Fusion.Scoring.ShortLength, "partial scoring block keeps other constants")
	assert.Equal(t, "han", cfg.Fusion.Scoring.ContentScript)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.True(t, cfg.Fusion.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "remote: [unclosed"))
	require.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"ANYTHINGLLM_API_KEY":        "legacy",
		"REMOTE_API_KEY":             "current",
		"ANYTHINGLLM_BASE_URL":       "http://legacy:3001",
		"LOCAL_SERVER_URL":           "http://127.0.0.1:9090/v1",
		"CACHE_BACKEND":              "redis",
		"REDIS_ADDR":                 "redis:6379",
		"LISTEN_ADDR":                ":7000",
		"LOG_LEVEL":                  "debug",
		"ANYTHINGLLM_DEBUG_THINKING": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "current", cfg.Remote.APIKey, "new name wins over legacy name")
	assert.Equal(t, "http://legacy:3001", cfg.Remote.BaseURL)
	assert.Equal(t, "http://127.0.0.1:9090/v1", cfg.Local.ServerURL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Remote.DebugThinking)
}

func TestApplyEnvRejectsBadBool(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"REMOTE_DEBUG_THINKING": "sometimes"}))
	require.Error(t, err)
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Parallel()

	err := Default().Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrMissingAPIKey))
	assert.False(t, IsValidationError(err))
}

func TestValidateFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad remote url", func(c *Config) { c.Remote.BaseURL = "not a url" }},
		{"bad mode", func(c *Config) { c.Remote.Mode = "agent" }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = "redis"
			c.Cache.RedisAddr = ""
		}},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"zero concurrency", func(c *Config) { c.Local.MaxConcurrent = 0 }},
		{"top_p above one", func(c *Config) { c.Local.TopP = 1.5 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"short request timeout", func(c *Config) { c.Server.RequestTimeout = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			cfg.Remote.APIKey = "key"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "expected field errors, got %v", err)
		})
	}
}

func TestValidateScoring(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Remote.APIKey = "key"
	cfg.Fusion.Scoring.LongLength = 10

	require.Error(t, cfg.Validate())
}

func TestConversions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Remote.APIKey = "key"
	cfg.Cache.Enabled = false
	cfg.Local.MaxTokens = 256

	rc := cfg.RemoteClientConfig()
	assert.Equal(t, "key", rc.APIKey)
	assert.Equal(t, 60*time.Second, rc.UpstreamTimeout)

	lc := cfg.LocalClientConfig()
	assert.Equal(t, 256, lc.Params.MaxTokens)
	assert.Equal(t, "phi3-mini", lc.DefaultModel)

	ec := cfg.EngineConfig()
	assert.True(t, ec.FusionEnabled)
	assert.False(t, ec.CachingEnabled)
	assert.Equal(t, 256, ec.LocalParams.MaxTokens)

	cc := cfg.AnswerCacheConfig()
	assert.Equal(t, "memory", cc.Backend)
	assert.Equal(t, 1000, cc.Capacity)
}
