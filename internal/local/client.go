package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"syncai-fusion/internal/metrics"
)

var (
	// ErrLoadFailed wraps any runtime failure while loading a model.
	ErrLoadFailed = errors.New("local: model load failed")
	// ErrNotLoaded is returned when the model went away before generation.
	ErrNotLoaded = errors.New("local: model not loaded")
)

type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Info describes the current model for health reporting.
type Info struct {
	State     string    `json:"state"`
	Model     string    `json:"model,omitempty"`
	Path      string    `json:"path,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitzero"`
	Params    Params    `json:"params"`
	Supported []string  `json:"supported_models"`
}

// Client owns one loaded local model.
//
// Loads are serialized by loadSem. Generations hold mu for reading, so an
// unload or model swap waits for in-flight generations to finish.
type Client struct {
	cfg     Config
	runtime Runtime
	logger  *zap.Logger

	state   atomic.Int32
	loadSem *semaphore.Weighted
	genSem  *semaphore.Weighted

	mu       sync.RWMutex
	model    Model
	name     string
	path     string
	loadedAt time.Time
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("local")

	rt := cfg.Runtime
	if rt == nil {
		rt = NewServerRuntime(cfg.ServerURL, cfg.APIKey, logger)
	}

	c := &Client{
		cfg:     cfg,
		runtime: rt,
		logger:  logger,
		loadSem: semaphore.NewWeighted(1),
		genSem:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	c.setState(StateUnloaded)
	return c, nil
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	metrics.LocalModelState.Set(float64(s))
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) IsLoaded() bool {
	return c.State() == StateLoaded
}

// EnsureLoaded loads the named model unless it is already loaded. A
// different loaded model is replaced. Only one load runs at a time.
func (c *Client) EnsureLoaded(ctx context.Context, name string) error {
	if name == "" {
		name = c.cfg.DefaultModel
	}
	path, err := ResolveModelPath(c.cfg.ModelsDir, name)
	if err != nil {
		return err
	}

	if err := c.loadSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("local: wait for load: %w", err)
	}
	defer c.loadSem.Release(1)

	c.mu.RLock()
	same := c.model != nil && c.path == path
	c.mu.RUnlock()
	if same {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		if err := c.closeModelLocked(); err != nil {
			c.logger.Warn("closing previous model", zap.Error(err))
		}
	}

	c.setState(StateLoading)
	start := time.Now()
	c.logger.Info("loading model", zap.String("model", name), zap.String("path", path))

	loadCtx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()

	model, err := c.runtime.Load(loadCtx, path)
	if err != nil {
		c.setState(StateUnloaded)
		c.logger.Error("model load failed",
			zap.String("model", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %w", ErrLoadFailed, name, err)
	}

	c.model = model
	c.name = name
	c.path = path
	c.loadedAt = time.Now()
	c.setState(StateLoaded)

	c.logger.Info("model loaded",
		zap.String("model", name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Generate runs one completion. An unloaded client loads the default model
// first.
func (c *Client) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	if c.State() != StateLoaded {
		if err := c.EnsureLoaded(ctx, c.cfg.DefaultModel); err != nil {
			return "", err
		}
	}

	if err := c.genSem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("local: wait for generation slot: %w", err)
	}
	defer c.genSem.Release(1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return "", ErrNotLoaded
	}

	start := time.Now()
	out, err := c.model.Generate(ctx, prompt, p.withDefaults(c.cfg.Params))
	if err != nil {
		c.logger.Warn("generation failed",
			zap.String("model", c.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("local: generate: %w", err)
	}

	c.logger.Debug("generation completed",
		zap.String("model", c.name),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("answer_len", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(out), nil
}

// Unload releases the model. It waits for running generations.
func (c *Client) Unload() error {
	if err := c.loadSem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.loadSem.Release(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model == nil {
		return nil
	}
	err := c.closeModelLocked()
	c.logger.Info("model unloaded")
	return err
}

func (c *Client) closeModelLocked() error {
	err := c.model.Close()
	c.model = nil
	c.name = ""
	c.path = ""
	c.loadedAt = time.Time{}
	c.setState(StateUnloaded)
	if err != nil {
		return fmt.Errorf("local: close model: %w", err)
	}
	return nil
}

// Info never blocks on a running load.
func (c *Client) Info() Info {
	info := Info{
		State:  c.State().String(),
		Params: c.cfg.Params,
	}
	for _, e := range Catalog() {
		info.Supported = append(info.Supported, e.Name)
	}

	if c.mu.TryRLock() {
		info.Model = c.name
		info.Path = c.path
		info.LoadedAt = c.loadedAt
		c.mu.RUnlock()
	}
	return info
}

// Close unloads the model.
func (c *Client) Close() error {
	return c.Unload()
}
