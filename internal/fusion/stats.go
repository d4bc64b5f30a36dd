package fusion

import (
	"math"
	"sync"
	"time"

	"syncai-fusion/internal/metrics"
)

type outcomeKind int

const (
	outcomeDual outcomeKind = iota
	outcomeRemoteOnly
	outcomeLocalOnly
	outcomeFallback
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeDual:
		return "dual"
	case outcomeRemoteOnly:
		return "remote_only"
	case outcomeLocalOnly:
		return "local_only"
	default:
		return "fallback"
	}
}

// Stats is a point-in-time copy of the engine counters.
// DualSuccess + RemoteOnly + LocalOnly + FallbackUsed == TotalRequests;
// cache hits are counted apart.
type Stats struct {
	TotalRequests  int64 `json:"total_requests"`
	DualSuccess    int64 `json:"dual_success"`
	RemoteOnly     int64 `json:"remote_only"`
	LocalOnly      int64 `json:"local_only"`
	FusionSuccess  int64 `json:"fusion_success"`
	MergeFallbacks int64 `json:"merge_fallbacks"`
	FallbackUsed   int64 `json:"fallback_used"`
	CacheHits      int64 `json:"cache_hits"`

	AvgRemoteTime time.Duration `json:"avg_remote_ns"`
	AvgLocalTime  time.Duration `json:"avg_local_ns"`
	AvgFusionTime time.Duration `json:"avg_fusion_ns"`

	Rates Rates `json:"success_rates"`

	FusionEnabled  bool `json:"fusion_enabled"`
	CachingEnabled bool `json:"caching_enabled"`
	CacheSize      int  `json:"cache_size"`
	CacheCapacity  int  `json:"cache_capacity"`
}

// Rates are percentages of TotalRequests, one decimal.
type Rates struct {
	Dual       float64 `json:"dual_success"`
	RemoteOnly float64 `json:"remote_only"`
	LocalOnly  float64 `json:"local_only"`
	Fusion     float64 `json:"fusion_success"`
	Fallback   float64 `json:"fallback"`
	CacheHit   float64 `json:"cache_hit"`
}

type statsRecorder struct {
	mu sync.Mutex
	s  Stats
}

func (r *statsRecorder) record(k outcomeKind) {
	r.mu.Lock()
	r.s.TotalRequests++
	switch k {
	case outcomeDual:
		r.s.DualSuccess++
	case outcomeRemoteOnly:
		r.s.RemoteOnly++
	case outcomeLocalOnly:
		r.s.LocalOnly++
	default:
		r.s.FallbackUsed++
	}
	r.mu.Unlock()

	metrics.FusionRequestsTotal.WithLabelValues(k.String()).Inc()
}

func (r *statsRecorder) cacheHit() {
	r.mu.Lock()
	r.s.CacheHits++
	r.mu.Unlock()

	metrics.FusionRequestsTotal.WithLabelValues("cache_hit").Inc()
}

func (r *statsRecorder) merged(fused bool, elapsed time.Duration) {
	r.mu.Lock()
	if fused {
		r.s.FusionSuccess++
	} else {
		r.s.MergeFallbacks++
	}
	r.s.AvgFusionTime = halve(r.s.AvgFusionTime, elapsed)
	r.mu.Unlock()

	method := "heuristic"
	if fused {
		method = "fused"
	}
	metrics.FusionMergesTotal.WithLabelValues(method).Inc()
}

func (r *statsRecorder) remoteLatency(d time.Duration) {
	r.mu.Lock()
	r.s.AvgRemoteTime = halve(r.s.AvgRemoteTime, d)
	r.mu.Unlock()
}

func (r *statsRecorder) localLatency(d time.Duration) {
	r.mu.Lock()
	r.s.AvgLocalTime = halve(r.s.AvgLocalTime, d)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	s := r.s
	r.mu.Unlock()

	if total := s.TotalRequests; total > 0 {
		s.Rates = Rates{
			Dual:       percent(s.DualSuccess, total),
			RemoteOnly: percent(s.RemoteOnly, total),
			LocalOnly:  percent(s.LocalOnly, total),
			Fusion:     percent(s.FusionSuccess, total),
			Fallback:   percent(s.FallbackUsed, total),
		}
	}
	if lookups := s.TotalRequests + s.CacheHits; lookups > 0 {
		s.Rates.CacheHit = percent(s.CacheHits, lookups)
	}
	return s
}

func (r *statsRecorder) reset() {
	r.mu.Lock()
	r.s = Stats{}
	r.mu.Unlock()
}

// halve is the running average: each sample weighs as much as all history.
// The first sample seeds it.
func halve(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return (avg + sample) / 2
}

func percent(n, total int64) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
