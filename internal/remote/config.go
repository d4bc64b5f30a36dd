package remote

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	BaseURL string // service root, e.g. http://localhost:3001
	APIKey  string

	DefaultWorkspace string // used when a chat names no workspace (default: syncai)
	WorkspacePrefix  string // slug prefix for EnsureWorkspace (default: syncai-)
	Mode             string // chat mode sent upstream (default: chat)
	DebugThinking    bool   // keep <think> blocks in answers

	UpstreamTimeout time.Duration // per call, retries included (default: 60s)
	MaxRetries      int           // default: 2
	BaseBackoff     time.Duration // default: 100ms

	MaxIdleConnsPerHost int // default: 5

	// HTTPClient replaces the pooled default, mostly for tests.
	HTTPClient *http.Client
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base URL %q must be an absolute http(s) URL", c.BaseURL)
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Mode != ModeChat && c.Mode != ModeQuery {
		return errors.New("mode must be chat or query")
	}
	return nil
}

// WithDefaults returns a copy with zero fields filled and the base URL
// stripped of trailing slashes.
func (c *Config) WithDefaults() Config {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	if cfg.DefaultWorkspace == "" {
		cfg.DefaultWorkspace = "syncai"
	}
	if cfg.WorkspacePrefix == "" {
		cfg.WorkspacePrefix = "syncai-"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeChat
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 5
	}
	return cfg
}
