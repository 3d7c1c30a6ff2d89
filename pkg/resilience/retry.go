// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/shopper/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below one mean one attempt.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay between attempts. Defaults to 2.
	Multiplier float64

	// Jitter spreads each delay by a fraction of itself; 0.1 means ±10%.
	Jitter float64

	// IsRecoverable decides whether an error is worth another attempt.
	// If nil, typed errors are retried only when marked recoverable.
	IsRecoverable func(error) bool

	// OnRetry, when set, is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// RetryAfterError is implemented by errors that carry a server supplied
// wait, such as an HTTP 429 with a Retry-After header.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// DefaultRetryConfig returns three attempts starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

func (rc RetryConfig) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Do executes fn with retry logic, returning the last error if all attempts fail.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	_, err := Retry(ctx, rc, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Retry executes fn with the retry policy and returns its last result.
func Retry[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	attempts := max(rc.MaxAttempts, 1)
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = isRecoverableDefault
	}

	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil || attempt >= attempts || !recoverable(err) {
			return v, err
		}

		delay := rc.delay(attempt, err)
		if rc.OnRetry != nil {
			rc.OnRetry(attempt, err, delay)
		}
		if !sleep(ctx, delay) {
			var zero T
			return zero, errors.New(errors.CodeContextLost, "context canceled during retry", ctx.Err()).
				WithContext("attempt", attempt).
				WithContext("max_attempts", attempts)
		}
	}
}

// delay computes the wait after a failed attempt. A server supplied
// Retry-After wins over the backoff but is still capped by MaxDelay.
func (rc RetryConfig) delay(attempt int, err error) time.Duration {
	var hinted RetryAfterError
	if stderrors.As(err, &hinted) && hinted.RetryAfter() > 0 {
		return capDelay(hinted.RetryAfter(), rc.MaxDelay)
	}

	multiplier := rc.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	d := capDelay(time.Duration(float64(rc.InitialDelay)*math.Pow(multiplier, float64(attempt-1))), rc.MaxDelay)
	if rc.Jitter > 0 {
		spread := float64(d) * rc.Jitter
		d = max(time.Duration(float64(d)+2*spread*(rand.Float64()-0.5)), 0)
	}
	return d
}

func capDelay(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Recoverable
	}
	return true
}
