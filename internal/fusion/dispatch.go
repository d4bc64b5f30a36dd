package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"syncai-fusion/internal/metrics"
	"syncai-fusion/internal/remote"
	"syncai-fusion/pkg/logging/logging"
)

var errEmptyAnswer = errors.New("fusion: empty answer")

// outcome is what one backend call produced.
type outcome struct {
	answer  string
	elapsed time.Duration
	err     error
}

func (o outcome) ok() bool {
	return o.err == nil
}

// callWithTimeout runs fn under its own deadline. The result is abandoned
// when the deadline passes even if fn ignores ctx, and a panic in fn is
// returned as an error. Blank answers are failures.
func callWithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) (string, error)) outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("fusion: backend panic: %v", r)}
			}
		}()
		answer, err := fn(ctx)
		done <- outcome{answer: answer, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	out.elapsed = time.Since(start)

	if out.err == nil {
		out.answer = strings.TrimSpace(out.answer)
		if out.answer == "" {
			out.err = errEmptyAnswer
		}
	}
	return out
}

func (e *Engine) askRemote(ctx context.Context, d time.Duration, label, message, target string) outcome {
	out := callWithTimeout(ctx, d, func(ctx context.Context) (string, error) {
		resp, err := e.remote.Chat(ctx, &remote.ChatRequest{Message: message, Workspace: target})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	})
	metrics.ObserveBackend(label, out.ok(), out.elapsed)
	return out
}

func (e *Engine) askLocal(ctx context.Context, cfg Config, question string) outcome {
	out := callWithTimeout(ctx, cfg.BackendTimeout, func(ctx context.Context) (string, error) {
		return e.local.Generate(ctx, LocalPrompt(question), cfg.LocalParams)
	})
	metrics.ObserveBackend("local", out.ok(), out.elapsed)
	return out
}

// dualDispatch asks both backends at once and waits for both to settle.
// Neither call is cancelled by the other finishing or failing.
func (e *Engine) dualDispatch(ctx context.Context, cfg Config, req Request) (a, b outcome) {
	var g errgroup.Group
	g.Go(func() error {
		a = e.askRemote(ctx, cfg.BackendTimeout, "remote", req.Text, req.Target)
		return nil
	})
	g.Go(func() error {
		b = e.askLocal(ctx, cfg, req.Text)
		return nil
	})
	_ = g.Wait()

	e.stats.remoteLatency(a.elapsed)
	e.stats.localLatency(b.elapsed)

	logger := logging.L(ctx)
	if !a.ok() {
		logger.Warn("remote backend failed", zap.Duration("elapsed", a.elapsed), zap.Error(a.err))
	}
	if !b.ok() {
		logger.Warn("local backend failed", zap.Duration("elapsed", b.elapsed), zap.Error(b.err))
	}
	return a, b
}

// merge fuses two good answers through the remote backend, falling back to
// the quality heuristic when the merge pass fails or returns nothing.
func (e *Engine) merge(ctx context.Context, cfg Config, req Request, a, b string) string {
	prompt := e.mergePrompt(req.TaskType, req.Text, a, b)
	out := e.askRemote(ctx, cfg.FusionTimeout, "merge", prompt, req.Target)

	e.stats.merged(out.ok(), out.elapsed)
	if out.ok() {
		logging.L(ctx).Debug("answers fused", zap.Duration("elapsed", out.elapsed))
		return out.answer
	}

	logging.L(ctx).Warn("merge pass failed, selecting by heuristic",
		zap.Duration("elapsed", out.elapsed),
		zap.Error(out.err),
	)
	return NewScorer(cfg.Scoring).Select(a, b)
}
