package scoring

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/logger"
)

// maxAttempts bounds how often one batch is sent.
const maxAttempts = 3

// Stubbed in tests.
var retryWait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDecision reports whether a failed attempt should be repeated and how
// long to wait first. Rate limits back off twice as long.
func retryDecision(ctx context.Context, err error, attempt int) (bool, time.Duration) {
	if err == nil || attempt >= maxAttempts {
		return false, 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if !apperrors.IsRetryable(err) {
		return false, 0
	}
	base := 1 * time.Second
	maxBackoff := 20 * time.Second
	jitterMax := 1 * time.Second

	backoff := base << (attempt - 1)
	if apperrors.Is(err, apperrors.KindRateLimit) {
		backoff = backoff * 2
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(jitterMax)))
	return true, backoff + jitter
}

// withRetry calls fn until it succeeds, fails for good or runs out of
// attempts.
func withRetry(ctx context.Context, backend string, batch int, fn func() ([]float64, error)) ([]float64, error) {
	for attempt := 1; ; attempt++ {
		scores, err := fn()
		if err == nil {
			return scores, nil
		}
		retry, backoff := retryDecision(ctx, err, attempt)
		if !retry {
			if attempt > 1 {
				logger.Error("Batch failed after retries", "backend", backend, "batch", batch, "attempts", attempt, "error", err)
			}
			return nil, err
		}
		logger.Warn("Batch retry", "backend", backend, "batch", batch, "attempt", attempt, "backoff_ms", backoff.Milliseconds(), "error", err)
		if err := retryWait(ctx, backoff); err != nil {
			return nil, err
		}
	}
}
