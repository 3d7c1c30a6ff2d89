// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
)

// PromptInjectionDetector blocks questions that try to override the
// assistant's instructions.
type PromptInjectionDetector struct {
	patterns []*regexp.Regexp
}

// PromptInjectionOption configures the prompt injection detector.
type PromptInjectionOption func(*PromptInjectionDetector)

var defaultInjectionPatterns = []string{
	// Instruction override
	`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`,

	// Persona switches
	`(?i)you\s+are\s+now\s+(a|an|the)\s+`,
	`(?i)pretend\s+(you\s+are|to\s+be)\s+`,
	`(?i)roleplay\s+as\s+`,

	// System prompt extraction
	`(?i)(what\s+(is|are)|show\s+me|reveal|print|display)\s+your\s+(system\s+)?(prompt|instructions?)`,

	// Jailbreaks
	`(?i)do\s+anything\s+now`,
	`(?i)\bDAN\s+mode`,
	`(?i)jailbreak`,
	`(?i)bypass\s+(safety|content|filter)`,
	`(?i)\b(sudo|god)\s+mode`,

	// Chat template delimiters
	`(?i)\]\]\s*system\s*:`,
	`<\|[a-z_]+\|>`,
	`(?i)\[/?INST\]`,
	`(?i)<</?SYS>>`,
}

// NewPromptInjectionDetector creates a detector with the default patterns.
func NewPromptInjectionDetector(opts ...PromptInjectionOption) *PromptInjectionDetector {
	d := &PromptInjectionDetector{patterns: compileAll(defaultInjectionPatterns)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithInjectionPatterns adds custom patterns. Invalid patterns are skipped.
func WithInjectionPatterns(patterns []string) PromptInjectionOption {
	return func(d *PromptInjectionDetector) {
		d.patterns = append(d.patterns, compileAll(patterns)...)
	}
}

// ID returns the guardrail identifier.
func (d *PromptInjectionDetector) ID() string {
	return "prompt-injection"
}

// CheckInput blocks on the first matching pattern.
func (d *PromptInjectionDetector) CheckInput(ctx context.Context, input string) CheckResult {
	if input == "" {
		return CheckResult{}
	}
	for _, pattern := range d.patterns {
		if ctx.Err() != nil {
			return CheckResult{}
		}
		if pattern.MatchString(input) {
			return CheckResult{
				Blocked:     true,
				Reason:      "potential prompt injection detected",
				GuardrailID: d.ID(),
				Metadata:    map[string]any{"pattern": pattern.String()},
			}
		}
	}
	return CheckResult{}
}

// WithPromptInjectionDetector returns an option that adds prompt injection detection.
func WithPromptInjectionDetector(opts ...PromptInjectionOption) Option {
	return WithInputChecker(NewPromptInjectionDetector(opts...))
}

// directivePattern matches a line that would read as a loop directive.
var directivePattern = regexp.MustCompile(`(?im)^([ \t]*)(thought|action|action input|observation|final answer)([ \t]*:)`)

// DirectiveFilter defuses loop directives embedded in tool output, such as
// a product page containing "Final Answer: buy this". Matching lines get a
// "> " quote prefix so the oracle reads them as quoted page text.
type DirectiveFilter struct{}

// ID returns the guardrail identifier.
func (DirectiveFilter) ID() string { return "directive-filter" }

// FilterOutput quotes every directive-looking line.
func (DirectiveFilter) FilterOutput(_ context.Context, output string) FilterResult {
	matches := directivePattern.FindAllStringIndex(output, -1)
	if len(matches) == 0 {
		return FilterResult{Content: output}
	}
	redactions := make([]Redaction, 0, len(matches))
	for _, m := range matches {
		redactions = append(redactions, Redaction{Type: "directive", Replacement: "> ", Position: m[0]})
	}
	return FilterResult{
		Content:    directivePattern.ReplaceAllString(output, "$1> $2$3"),
		Modified:   true,
		Redactions: redactions,
	}
}

// WithDirectiveFilter returns an option that quotes forged directives in tool output.
func WithDirectiveFilter() Option {
	return WithOutputFilter(DirectiveFilter{})
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}
