// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/shopper/pkg/errors"
)

// MeterName is the instrumentation scope for shopper metrics.
const MeterName = "shopper/agent"

// AgentMetrics records loop outcomes, turns, parse failures, tool latency and
// typed errors. A nil *AgentMetrics is a valid no-op recorder.
type AgentMetrics struct {
	runs          metric.Int64Counter
	turns         metric.Int64Histogram
	parseFailures metric.Int64Counter
	toolLatency   metric.Float64Histogram
	errorCounter  metric.Int64Counter
	breakerState  metric.Int64Gauge
}

// NewAgentMetrics creates the instruments on the global meter provider.
func NewAgentMetrics() (*AgentMetrics, error) {
	return NewAgentMetricsWithMeter(otel.Meter(MeterName))
}

// NewAgentMetricsWithMeter creates the instruments on meter.
func NewAgentMetricsWithMeter(meter metric.Meter) (*AgentMetrics, error) {
	runs, err := meter.Int64Counter(
		"shopper.agent.runs",
		metric.WithDescription("Agent runs by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	turns, err := meter.Int64Histogram(
		"shopper.agent.turns",
		metric.WithDescription("Turns recorded per agent run"),
	)
	if err != nil {
		return nil, err
	}

	parseFailures, err := meter.Int64Counter(
		"shopper.agent.parse_failures",
		metric.WithDescription("Oracle outputs that could not be parsed"),
	)
	if err != nil {
		return nil, err
	}

	toolLatency, err := meter.Float64Histogram(
		"shopper.tool.latency_ms",
		metric.WithDescription("Tool invocation latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"shopper.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	breakerState, err := meter.Int64Gauge(
		"shopper.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		runs:          runs,
		turns:         turns,
		parseFailures: parseFailures,
		toolLatency:   toolLatency,
		errorCounter:  errorCounter,
		breakerState:  breakerState,
	}, nil
}

// RecordRun counts a finished run and its turn count.
func (m *AgentMetrics) RecordRun(ctx context.Context, agent, status string, turns int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrAgentStatus, status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.turns.Record(ctx, int64(turns), attrs)
}

// RecordParseFailure counts an unparsable oracle output.
func (m *AgentMetrics) RecordParseFailure(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.parseFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

// RecordToolCall records tool latency and outcome.
func (m *AgentMetrics) RecordToolCall(ctx context.Context, tool string, durationMs float64, success bool) {
	if m == nil {
		return
	}
	m.toolLatency.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.Bool(AttrToolSuccess, success),
	))
}

// RecordError counts err under its typed code.
func (m *AgentMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	e := errors.As(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(e.Code)),
		attribute.String("component", component),
		attribute.String("recoverable", e.RecoverableString()),
	))
}

// RecordCircuitBreakerState records the breaker state (0=open, 1=half-open, 2=closed).
func (m *AgentMetrics) RecordCircuitBreakerState(ctx context.Context, component string, state int64) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(attribute.String("component", component)))
}
