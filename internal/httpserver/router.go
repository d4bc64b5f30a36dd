package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"syncai-fusion/internal/handlers"
	"syncai-fusion/internal/metrics"
	"syncai-fusion/internal/middleware"
)

// Limits bounds every inbound request.
type Limits struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, limits Limits, askHandler *handlers.AskHandler, adminHandler *handlers.AdminHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())                      // panic recovery
	r.Use(middleware.Timeout(limits.RequestTimeout))   // request timeout
	r.Use(middleware.MaxBodySize(limits.MaxBodyBytes)) // max body

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", askHandler.Ask)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/fusion/enable", adminHandler.EnableFusion)
			r.Post("/fusion/disable", adminHandler.DisableFusion)
			r.Post("/cache/clear", adminHandler.ClearCache)
			r.Post("/stats/reset", adminHandler.ResetStats)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/health", adminHandler.Health)
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
