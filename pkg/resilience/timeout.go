// SPDX-License-Identifier: Apache-2.0
// Package resilience provides timeout, retry, fallback and circuit breaker
// helpers for calls to external services.
package resilience

import (
	"context"
	"time"

	"github.com/jllopis/shopper/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables it.
	Duration time.Duration
}

// WithTimeout executes fn with a timeout boundary.
// Returns errors.CodeTimeout if the deadline is exceeded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result and error.
// fn receives the bounded context; if it ignores cancellation the call still
// returns at the deadline and the late result is discarded.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.Canceled {
			return zero, errors.New(errors.CodeContextLost, "operation canceled", ctx.Err())
		}
		return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
