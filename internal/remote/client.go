package remote

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	// slugs known to exist upstream
	known  sync.Map
	ensure singleflight.Group
}

// NewClient builds a workspace chat client. A missing API key is reported
// as ErrMissingAPIKey.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(cfg.MaxIdleConnsPerHost)}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("remote"),
	}, nil
}

// newTransport pools connections to the single upstream host.
func newTransport(perHost int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.MaxIdleConns = perHost * 2
	t.MaxIdleConnsPerHost = perHost
	return t
}

func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *client) BaseURL() string {
	return c.cfg.BaseURL
}

// endpoint joins escaped path segments onto /api/v1.
func (c *client) endpoint(segments ...string) string {
	path := c.cfg.BaseURL + "/api/v1"
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	return path
}
