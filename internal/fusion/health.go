package fusion

import (
	"context"

	"syncai-fusion/internal/local"
)

type Health struct {
	Status string        `json:"status"` // healthy | disabled
	Remote BackendHealth `json:"remote"`
	Local  BackendHealth `json:"local"`
	Cache  CacheHealth   `json:"cache"`
}

type BackendHealth struct {
	Status   string      `json:"status"`
	Endpoint string      `json:"endpoint,omitempty"`
	Model    *local.Info `json:"model,omitempty"`
}

type CacheHealth struct {
	Enabled  bool `json:"enabled"`
	Size     int  `json:"size"`
	Capacity int  `json:"capacity"`
}

// Health reports engine state from what is already known. It makes no
// backend calls; use the clients' own health checks for liveness.
func (e *Engine) Health(ctx context.Context) Health {
	h := Health{
		Status: "healthy",
		Remote: BackendHealth{Status: "configured"},
		Local:  BackendHealth{Status: "unknown"},
		Cache: CacheHealth{
			Enabled:  e.CachingEnabled(),
			Capacity: e.cache.Capacity(),
		},
	}
	if !e.FusionEnabled() {
		h.Status = "disabled"
	}

	if r, ok := e.remote.(endpointReporter); ok {
		h.Remote.Endpoint = r.BaseURL()
	}

	if l, ok := e.local.(loadReporter); ok {
		h.Local.Status = "not_loaded"
		if l.IsLoaded() {
			h.Local.Status = "loaded"
		}
	}
	if l, ok := e.local.(infoReporter); ok {
		info := l.Info()
		h.Local.Model = &info
	}

	if n, err := e.cache.Len(ctx); err == nil {
		h.Cache.Size = n
	}
	return h
}
