// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails screens the text that crosses the agent loop.
//
// Guardrails run at two points:
//   - Input: the user question, before the first oracle call (prompt injection).
//   - Observations: tool output, before it is replayed to the oracle
//     (forged directives in scraped pages, PII in reviews).
//
// Example usage:
//
//	guard := guardrails.New(
//	    guardrails.WithPromptInjectionDetector(),
//	    guardrails.WithDirectiveFilter(),
//	    guardrails.WithPIIFilter(guardrails.PIIFilterMask),
//	)
//
//	if result := guard.CheckInput(ctx, question); result.Blocked {
//	    return result.Reason
//	}
//	clean := guard.FilterOutput(ctx, observation).Content
package guardrails

import "context"

// CheckResult represents the outcome of a guardrail check.
type CheckResult struct {
	// Blocked indicates the content should not proceed.
	Blocked bool

	// Reason explains why content was blocked (empty if not blocked).
	Reason string

	// GuardrailID identifies which guardrail triggered the block.
	GuardrailID string

	// Metadata contains additional context from the check.
	Metadata map[string]any
}

// FilterResult represents the outcome of output filtering.
type FilterResult struct {
	// Content is the (potentially modified) output content.
	Content string

	// Modified indicates if the content was changed.
	Modified bool

	// Redactions lists what was removed or masked.
	Redactions []Redaction
}

// Redaction describes a single content modification. The original text is
// never kept.
type Redaction struct {
	Type        string
	Replacement string
	Position    int
}

// InputChecker validates content before it reaches the oracle.
type InputChecker interface {
	CheckInput(ctx context.Context, input string) CheckResult
	ID() string
}

// OutputFilter rewrites content before it is shown to the oracle.
type OutputFilter interface {
	FilterOutput(ctx context.Context, output string) FilterResult
	ID() string
}

// Guardrails orchestrates input checkers and output filters. It is
// immutable after New and safe for concurrent use.
type Guardrails struct {
	inputCheckers []InputChecker
	outputFilters []OutputFilter
}

// Option configures the Guardrails instance.
type Option func(*Guardrails)

// New creates a new Guardrails instance with the given options.
func New(opts ...Option) *Guardrails {
	g := &Guardrails{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithInputChecker adds an input checker.
func WithInputChecker(checker InputChecker) Option {
	return func(g *Guardrails) {
		g.inputCheckers = append(g.inputCheckers, checker)
	}
}

// WithOutputFilter adds an output filter.
func WithOutputFilter(filter OutputFilter) Option {
	return func(g *Guardrails) {
		g.outputFilters = append(g.outputFilters, filter)
	}
}

// Empty reports whether no checker or filter is configured.
func (g *Guardrails) Empty() bool {
	return g == nil || (len(g.inputCheckers) == 0 && len(g.outputFilters) == 0)
}

// CheckInput runs the input checkers in order and returns the first block.
// A cancelled context blocks: nothing unchecked reaches the oracle.
func (g *Guardrails) CheckInput(ctx context.Context, input string) CheckResult {
	if g == nil {
		return CheckResult{}
	}
	for _, checker := range g.inputCheckers {
		if ctx.Err() != nil {
			return CheckResult{Blocked: true, Reason: "guardrail check cancelled", GuardrailID: "system"}
		}
		result := checker.CheckInput(ctx, input)
		if result.Blocked {
			result.GuardrailID = checker.ID()
			return result
		}
	}
	return CheckResult{}
}

// FilterOutput runs the output filters in sequence, each on the previous
// one's result.
func (g *Guardrails) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}
	if g == nil {
		return result
	}
	for _, filter := range g.outputFilters {
		if ctx.Err() != nil {
			return result
		}
		fr := filter.FilterOutput(ctx, result.Content)
		if fr.Modified {
			result.Content = fr.Content
			result.Modified = true
			result.Redactions = append(result.Redactions, fr.Redactions...)
		}
	}
	return result
}

// Stats contains guardrails statistics.
type Stats struct {
	InputCheckers int
	OutputFilters int
}

// Stats returns the number of configured checkers and filters.
func (g *Guardrails) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	return Stats{InputCheckers: len(g.inputCheckers), OutputFilters: len(g.outputFilters)}
}
