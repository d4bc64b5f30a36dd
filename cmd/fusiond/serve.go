package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"syncai-fusion/internal/handlers"
	"syncai-fusion/internal/httpserver"
	"syncai-fusion/internal/metrics"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			metrics.Register()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close failed", zap.Error(err))
				}
			}()

			logger.Info("loaded config",
				zap.String("listen_addr", cfg.ListenAddr),
				zap.String("remote_url", cfg.Remote.BaseURL),
				zap.String("local_url", cfg.Local.ServerURL),
				zap.String("cache_backend", cfg.Cache.Backend),
				zap.Bool("fusion_enabled", cfg.Fusion.Enabled),
				zap.Bool("caching_enabled", cfg.Cache.Enabled),
			)

			r := chi.NewRouter()
			httpserver.SetupRouter(r, logger,
				httpserver.Limits{
					RequestTimeout: cfg.Server.RequestTimeout,
					MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				},
				handlers.NewAskHandler(a.engine),
				handlers.NewAdminHandler(a.engine),
			)

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
				IdleTimeout:       60 * time.Second,
			}

			logger.Info("starting fusiond", zap.String("addr", srv.Addr), zap.String("version", version))

			serveErr := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					logger.Error("server error", zap.Error(err))
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
				return err
			}

			logger.Info("server shutdown complete")
			return nil
		},
	}
}
