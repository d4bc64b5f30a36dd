package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	maxBackoff    = 60 * time.Second
	maxRetryAfter = 5 * time.Minute
)

// verdict is what one attempt tells the retry loop.
type verdict struct {
	retry bool
	wait  time.Duration // zero means use the jittered backoff
	cause error
}

// judge decides whether an attempt is worth repeating. Only transient
// network errors and 408, 429 and 5xx responses are.
func judge(resp *http.Response, err error) verdict {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return verdict{cause: err}
		}
		return verdict{retry: isTransientNetError(err), cause: err}
	}

	switch code := resp.StatusCode; {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return verdict{
			retry: true,
			wait:  parseRetryAfter(resp),
			cause: fmt.Errorf("upstream status %d", code),
		}
	default:
		return verdict{}
	}
}

// doWithRetry runs do up to MaxRetries+1 times. A response is returned as
// soon as one is final; on the last attempt that includes a retryable
// status, so the caller can report it. Transport failures come back as *Error.
func (c *client) doWithRetry(
	ctx context.Context,
	op string,
	body []byte,
	do func(ctx context.Context, body []byte) (*http.Response, error),
) (*http.Response, error) {
	attempts := max(c.cfg.MaxRetries+1, 1)

	var cause error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, transportError(op, err)
		}

		start := time.Now()
		resp, err := do(ctx, body)
		v := judge(resp, err)
		last := attempt == attempts-1

		c.logger.Debug("remote attempt",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Int("status", statusOf(resp)),
			zap.Bool("retry", v.retry && !last),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		if err == nil && (!v.retry || last) {
			return resp, nil
		}
		if !v.retry {
			return nil, transportError(op, err)
		}

		cause = v.cause
		if resp != nil {
			// drain so the connection goes back to the pool
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
		}
		if last {
			break
		}

		wait := v.wait
		if wait == 0 {
			wait = computeBackoff(c.cfg.BaseBackoff, attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, transportError(op, err)
		}
	}

	c.logger.Warn("remote request gave up",
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	return nil, transportError(fmt.Sprintf("%s: gave up after %d attempts", op, attempts), cause)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isTransientNetError reports errors that usually mean the service is
// restarting or briefly unreachable.
func isTransientNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// parseRetryAfter reads delta-seconds or an HTTP date, capped at
// maxRetryAfter. Zero means absent or unusable.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	return min(max(d, 0), maxRetryAfter)
}

// computeBackoff is full jitter: uniform in [0, base<<attempt), capped at
// maxBackoff.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	ceiling := maxBackoff
	if next := base << attempt; attempt < 16 && next > 0 && next < maxBackoff {
		ceiling = next
	}
	return rand.N(ceiling)
}
