package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: fusion requests by classified outcome
	// (dual | remote_only | local_only | fallback | cache_hit).
	FusionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_requests_total",
			Help: "Total number of fusion requests by outcome.",
		},
		[]string{"outcome"},
	)

	// Counter: how dual answers were merged (fused | heuristic).
	FusionMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_merges_total",
			Help: "Total number of dual-answer merges by method.",
		},
		[]string{"method"},
	)

	// Histogram: per-backend call latency in seconds.
	BackendLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fusion_backend_latency_seconds",
			Help:    "Latency of remote, local and merge inference calls in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"backend", "result"},
	)

	// Counter: answer cache lookups (hit | miss | error).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answer_cache_lookups_total",
			Help: "Total number of answer cache lookups by result.",
		},
		[]string{"result"},
	)

	// Counter: entries dropped by LRU capacity pressure.
	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_cache_evictions_total",
			Help: "Total number of answer cache entries evicted by capacity.",
		},
	)

	// Gauge: local model state (0 unloaded, 1 loading, 2 loaded).
	LocalModelState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "local_model_state",
			Help: "State of the local model: 0 unloaded, 1 loading, 2 loaded.",
		},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fusiond_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		FusionRequestsTotal,
		FusionMergesTotal,
		BackendLatencySeconds,
		CacheLookupsTotal,
		CacheEvictionsTotal,
		LocalModelState,
		HTTPLatencySeconds,
	)
}

// ObserveBackend records one backend call.
func ObserveBackend(backend string, ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	BackendLatencySeconds.WithLabelValues(backend, result).Observe(elapsed.Seconds())
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency per route. The chi route pattern is used as
// the path label so ids in URLs do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		HTTPLatencySeconds.
			WithLabelValues(routeLabel(r), r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
