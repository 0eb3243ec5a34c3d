package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"
)

// maxBackoff caps the delay between retries.
const maxBackoff = 30 * time.Second

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter of up to 25%.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in the shift.
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	half := int64(backoff) / 2
	if half <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(half)) - backoff/4
	return backoff + jitter
}

type retryCompleter struct {
	inner    Completer
	attempts int
	base     time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithRetry retries failed calls up to attempts extra times with exponential
// backoff. The coordination core never retries on its own; this wrapper is for
// the process that assembles the completer. Context cancellation stops retries.
func WithRetry(c Completer, attempts int, base time.Duration) Completer {
	if attempts <= 0 {
		return c
	}
	return &retryCompleter{inner: c, attempts: attempts, base: base, sleep: sleepCtx}
}

func (r *retryCompleter) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, CalculateBackoff(r.base, attempt)); err != nil {
				return nil, err
			}
		}
		raw, err := r.inner.Complete(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("completion %q failed after %d attempts: %w", req.Name, r.attempts+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
