// SPDX-License-Identifier: Apache-2.0
package resilience

import "context"

// FallbackFunc produces a substitute value after the primary call failed.
type FallbackFunc[T any] func(ctx context.Context, primaryErr error) (T, error)

// WithFallback executes fn, and on error, uses the fallback.
func WithFallback[T any](ctx context.Context, fn func(context.Context) (T, error), fallback FallbackFunc[T]) (T, error) {
	value, err := fn(ctx)
	if err == nil || fallback == nil {
		return value, err
	}
	return fallback(ctx, err)
}
