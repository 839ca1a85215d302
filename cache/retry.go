package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"go.uber.org/zap"
)

// RetryPolicy controls how failed reads are repeated
type RetryPolicy struct {
	// Retries is the number of attempts after the first one
	Retries int
	// Delay is the backoff before the first retry, doubled on each further retry
	Delay time.Duration
	// MaxDelay caps a single backoff
	MaxDelay time.Duration
}

// Backoff returns the wait before retry number attempt (1-based): Delay, 2*Delay, 4*Delay...
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.Delay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retryable is implemented by errors that know whether repeating can help,
// such as *httpclient.Error
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether a failed read is worth repeating
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"temporary failure",
		"network is unreachable",
	}
	for _, s := range retryableErrors {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// runWithRetry calls fn until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx is done.
func runWithRetry(ctx context.Context, log logger.Logger, key string, policy RetryPolicy, fn Fetcher) (any, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			backoff := policy.Backoff(attempt)
			log.Warn("retrying fetch after backoff",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			case <-timer.C:
			}
		}

		data, err := fn(ctx)
		if err == nil {
			log.Debug("fetch completed",
				zap.String("key", key),
				zap.Int("attempt", attempt+1),
			)
			return data, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			log.Warn("non-retryable fetch error",
				zap.String("key", key),
				zap.Error(err),
			)
			return nil, err
		}
		log.Warn("fetch failed",
			zap.String("key", key),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", policy.Retries+1),
		)
	}
	return nil, lastErr
}
