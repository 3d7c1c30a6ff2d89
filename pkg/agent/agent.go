// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the tool-routing loop: it asks an oracle which
// tool to call next, runs it, feeds the observation back and stops on a final
// answer or an exhausted budget.
package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/guardrails"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/jllopis/shopper/pkg/telemetry"
	"github.com/jllopis/shopper/pkg/tools"
)

// Defaults applied by New.
const (
	DefaultMaxTurns         = 8
	DefaultMaxParseRetries  = 2
	DefaultObservationLimit = 4000
	DefaultToolTimeout      = 60 * time.Second
)

var (
	ErrMissingLLM = stderrors.New("agent llm provider is required")
	ErrEmptyGoal  = stderrors.New("goal must not be empty")
)

// Retriever folds stored context into the goal before the loop starts.
type Retriever interface {
	Augment(ctx context.Context, goal string) string
}

// Agent drives the loop against one oracle and one tool registry. It holds no
// per-run state and is safe for concurrent Run calls.
type Agent struct {
	name             string
	llm              llm.Provider
	model            string
	temperature      float64
	registry         *tools.Registry
	retriever        Retriever
	maxTurns         int
	maxParseRetries  int
	timeout          time.Duration
	toolTimeout      time.Duration
	observationLimit int
	systemPrompt     string
	logger           *slog.Logger
	events           core.EventEmitter
	metrics          *telemetry.AgentMetrics
	tracer           trace.Tracer
	guard            *guardrails.Guardrails
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent with a required name and options.
func New(name string, opts ...Option) (*Agent, error) {
	a := &Agent{
		name:             name,
		maxTurns:         DefaultMaxTurns,
		maxParseRetries:  DefaultMaxParseRetries,
		toolTimeout:      DefaultToolTimeout,
		observationLimit: DefaultObservationLimit,
		events:           core.NoopEventEmitter{},
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.name == "" {
		return nil, stderrors.New("agent name is required")
	}
	if a.llm == nil {
		return nil, ErrMissingLLM
	}
	if a.registry == nil {
		a.registry = tools.MustRegistry()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer("shopper/agent")
	}
	return a, nil
}

// WithLLM sets the oracle.
func WithLLM(p llm.Provider) Option {
	return func(a *Agent) error {
		a.llm = p
		return nil
	}
}

// WithModel sets the model name sent with every oracle request.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature must be within [0, 2], got %v", t)
		}
		a.temperature = t
		return nil
	}
}

// WithRegistry sets the tools offered to the oracle.
func WithRegistry(r *tools.Registry) Option {
	return func(a *Agent) error {
		a.registry = r
		return nil
	}
}

// WithRetriever enables goal augmentation before the first turn.
func WithRetriever(r Retriever) Option {
	return func(a *Agent) error {
		a.retriever = r
		return nil
	}
}

// WithMaxTurns bounds the number of oracle round trips per run.
func WithMaxTurns(n int) Option {
	return func(a *Agent) error {
		if n <= 0 {
			return fmt.Errorf("max turns must be positive, got %d", n)
		}
		a.maxTurns = n
		return nil
	}
}

// WithMaxParseRetries bounds consecutive unparsable replies. The run fails on
// the next failure after n retries.
func WithMaxParseRetries(n int) Option {
	return func(a *Agent) error {
		if n < 0 {
			return fmt.Errorf("max parse retries must not be negative, got %d", n)
		}
		a.maxParseRetries = n
		return nil
	}
}

// WithTimeout bounds the whole run. Zero means no deadline beyond the caller's.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.timeout = d
		return nil
	}
}

// WithToolTimeout bounds each tool invocation.
func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.toolTimeout = d
		return nil
	}
}

// WithObservationLimit caps the runes of each observation replayed to the oracle.
func WithObservationLimit(n int) Option {
	return func(a *Agent) error {
		if n <= 0 {
			return fmt.Errorf("observation limit must be positive, got %d", n)
		}
		a.observationLimit = n
		return nil
	}
}

// WithSystemPrompt replaces the assistant introduction. The tool list and
// directive format are always appended.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) error {
		a.systemPrompt = prompt
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) error {
		a.logger = l
		return nil
	}
}

// WithEventHandler receives an event on every state transition and turn.
func WithEventHandler(e core.EventEmitter) Option {
	return func(a *Agent) error {
		if e == nil {
			e = core.NoopEventEmitter{}
		}
		a.events = e
		return nil
	}
}

// WithMetrics records run, parse and tool metrics.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithGuardrails screens the goal before the first oracle call and filters
// every tool observation before it enters the transcript.
func WithGuardrails(g *guardrails.Guardrails) Option {
	return func(a *Agent) error {
		a.guard = g
		return nil
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		a.tracer = t
		return nil
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Model returns the configured model name.
func (a *Agent) Model() string { return a.model }

// Registry returns the tools offered to the oracle.
func (a *Agent) Registry() *tools.Registry { return a.registry }

// MaxTurns returns the turn budget.
func (a *Agent) MaxTurns() int { return a.maxTurns }

// RunOption adjusts a single run.
type RunOption func(*runConfig)

type runConfig struct {
	retriever   Retriever
	noRetrieval bool
	maxTurns    int
	events      core.EventEmitter
}

// UsingRetriever replaces the agent's retriever for one run.
func UsingRetriever(r Retriever) RunOption {
	return func(c *runConfig) { c.retriever = r }
}

// WithoutRetrieval skips goal augmentation for one run.
func WithoutRetrieval() RunOption {
	return func(c *runConfig) { c.noRetrieval = true }
}

// WithRunEvents streams the events of one run to e, in addition to the
// agent's own event handler.
func WithRunEvents(e core.EventEmitter) RunOption {
	return func(c *runConfig) { c.events = e }
}

// WithRunMaxTurns lowers the turn budget for one run. Values above the
// agent budget are capped to it.
func WithRunMaxTurns(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxTurns = n
		}
	}
}
