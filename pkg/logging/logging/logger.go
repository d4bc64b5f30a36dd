package logging

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	defaultMu     sync.RWMutex
	defaultLogger *zap.Logger
)

// Options selects the encoder and level. Empty fields fall back to the
// ENV and LOG_LEVEL environment variables.
type Options struct {
	Env   string // dev | development for console output, anything else JSON
	Level string // debug, info, warn, error
}

// Build creates a logger for opts. An unknown level is an error.
func Build(opts Options) (*zap.Logger, error) {
	env := firstNonEmpty(opts.Env, os.Getenv("ENV"))
	level := firstNonEmpty(opts.Level, os.Getenv("LOG_LEVEL"))

	var config zap.Config
	switch env {
	case "dev", "development":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config.Build()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultLogger is the process-wide fallback. Until SetDefault is called it
// is built from the environment, or is a no-op logger if that fails.
func DefaultLogger() *zap.Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		built, err := Build(Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: %v, logging disabled\n", err)
			built = zap.NewNop()
		}
		defaultLogger = built
	}
	return defaultLogger
}

// SetDefault replaces the fallback returned by DefaultLogger and L.
func SetDefault(logger *zap.Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// L returns the logger in ctx, or DefaultLogger.
func L(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return DefaultLogger()
}
