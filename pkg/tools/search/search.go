// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package search implements the web_search capability: a query goes to a
// search backend and the top organic results come back as {title, link}.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/resilience"
	"github.com/jllopis/shopper/pkg/tools"
)

// ToolName is the registry name of the search capability.
const ToolName = "web_search"

// DefaultLimit is the number of results returned to the oracle.
const DefaultLimit = 3

const maxBodyBytes = 1 << 20

// Result is one organic search hit.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Backend runs a web search.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Option configures the search tool.
type Option func(*toolConfig)

type toolConfig struct {
	limit   int
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// WithLimit sets how many results are returned.
func WithLimit(n int) Option {
	return func(c *toolConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *toolConfig) { c.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *toolConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewTool wraps backend as the web_search capability. Calls go through a
// circuit breaker so a dead backend fails fast instead of burning turns.
func NewTool(backend Backend, opts ...Option) *tools.Func {
	cfg := toolConfig{limit: DefaultLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.breaker == nil {
		cfg.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             ToolName,
			FailureThreshold: 3,
			Timeout:          30 * time.Second,
		})
	}

	return tools.NewFunc(ToolName,
		"Searches the web for products, reviews and prices. Input is the search query. Returns up to 3 results as [{title, link}].",
		[]core.Parameter{{Name: "input", Type: core.ParamString, Description: "search query", Required: true}},
		func(ctx context.Context, input any) core.Result {
			query := tools.AsString(input)
			if query == "" {
				return core.Fail(errors.CodeInvalidInput, "empty search query")
			}
			results, err := resilience.Execute(ctx, cfg.breaker, func(ctx context.Context) ([]Result, error) {
				return backend.Search(ctx, query, cfg.limit)
			})
			if err != nil {
				cfg.logger.WarnContext(ctx, "search.error",
					slog.String("backend", backend.Name()),
					slog.String("query", query),
					slog.String("error", err.Error()),
				)
				return core.FailFrom(err)
			}
			if len(results) > cfg.limit {
				results = results[:cfg.limit]
			}
			if results == nil {
				results = []Result{}
			}
			cfg.logger.DebugContext(ctx, "search.complete",
				slog.String("backend", backend.Name()),
				slog.Int("results", len(results)),
			)
			return core.OK(results)
		})
}

// statusError maps a non-200 HTTP response to a typed error.
func statusError(backend string, code int) *errors.Error {
	msg := fmt.Sprintf("%s returned HTTP %d", backend, code)
	switch {
	case code == http.StatusTooManyRequests:
		return errors.New(errors.CodeRateLimit, msg, nil).WithRecoverable(true)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.New(errors.CodeUnauthorized, msg, nil)
	case code >= 500:
		return errors.New(errors.CodeUnavailable, msg, nil).WithRecoverable(true)
	default:
		return errors.New(errors.CodeToolFailure, msg, nil)
	}
}

func requestError(backend string, err error) *errors.Error {
	return errors.New(errors.CodeToolFailure, backend+" request failed", err).WithRecoverable(true)
}
