// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// PIIFilterMode determines how PII is handled.
type PIIFilterMode int

const (
	// PIIFilterMask replaces PII with masked placeholders (e.g., "[EMAIL]").
	PIIFilterMask PIIFilterMode = iota
	// PIIFilterRedact removes PII entirely.
	PIIFilterRedact
	// PIIFilterHash replaces PII with a short hash so repeated reviewers
	// stay distinguishable.
	PIIFilterHash
)

// ParsePIIMode maps a config value to a mode. "off" and "" report false.
func ParsePIIMode(s string) (PIIFilterMode, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return 0, false, nil
	case "mask":
		return PIIFilterMask, true, nil
	case "redact":
		return PIIFilterRedact, true, nil
	case "hash":
		return PIIFilterHash, true, nil
	default:
		return 0, false, fmt.Errorf("unknown pii mode %q", s)
	}
}

// PIIType categorizes different types of PII.
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypeCreditCard PIIType = "credit_card"
	PIITypeIPAddress  PIIType = "ip_address"
)

type piiPattern struct {
	piiType PIIType
	pattern *regexp.Regexp
	mask    string
}

// PIIFilter masks personal data that product pages and review snippets
// leak, such as reviewer e-mails or seller phone numbers.
type PIIFilter struct {
	mode     PIIFilterMode
	patterns []piiPattern
	disabled map[PIIType]bool
}

// PIIFilterOption configures the PII filter.
type PIIFilterOption func(*PIIFilter)

// Order matters: card numbers are checked before phones.
var defaultPIIPatterns = []struct {
	piiType PIIType
	pattern string
	mask    string
}{
	{PIITypeCreditCard, `\b[0-9]{4}[- ][0-9]{4}[- ][0-9]{4}[- ][0-9]{4}\b`, "[CREDIT_CARD]"},
	{PIITypeEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL]"},
	{PIITypePhone, `\+[0-9]{1,3}[-. ]?\(?[0-9]{2,4}\)?[-. ]?[0-9]{3,4}[-. ]?[0-9]{3,4}\b`, "[PHONE]"},
	{PIITypePhone, `\(?\b[0-9]{3}\)?[-. ][0-9]{3}[-. ][0-9]{4}\b`, "[PHONE]"},
	{PIITypeIPAddress, `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`, "[IP_ADDRESS]"},
}

// NewPIIFilter creates a new PII filter with every type enabled.
func NewPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) *PIIFilter {
	f := &PIIFilter{mode: mode, disabled: make(map[PIIType]bool)}
	for _, p := range defaultPIIPatterns {
		f.patterns = append(f.patterns, piiPattern{
			piiType: p.piiType,
			pattern: regexp.MustCompile(p.pattern),
			mask:    p.mask,
		})
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithExcludePII excludes specific PII types from filtering.
func WithExcludePII(types ...PIIType) PIIFilterOption {
	return func(f *PIIFilter) {
		for _, t := range types {
			f.disabled[t] = true
		}
	}
}

// ID returns the guardrail identifier.
func (f *PIIFilter) ID() string {
	return "pii-filter"
}

// FilterOutput masks or removes PII.
func (f *PIIFilter) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}
	if output == "" {
		return result
	}

	for _, p := range f.patterns {
		if f.disabled[p.piiType] {
			continue
		}
		if ctx.Err() != nil {
			return result
		}

		matches := p.pattern.FindAllStringIndex(result.Content, -1)
		// Reverse order keeps earlier offsets valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			replacement := f.replacement(p, result.Content[m[0]:m[1]])
			result.Redactions = append(result.Redactions, Redaction{
				Type:        string(p.piiType),
				Replacement: replacement,
				Position:    m[0],
			})
			result.Content = result.Content[:m[0]] + replacement + result.Content[m[1]:]
			result.Modified = true
		}
	}
	return result
}

func (f *PIIFilter) replacement(p piiPattern, original string) string {
	switch f.mode {
	case PIIFilterRedact:
		return ""
	case PIIFilterHash:
		return strings.TrimSuffix(p.mask, "]") + "_" + shortHash(original) + "]"
	default:
		return p.mask
	}
}

// shortHash is an 8 hex digit FNV-1a digest, for correlation only.
func shortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08X", h.Sum32())
}

// WithPIIFilter returns an option that adds PII filtering to output.
func WithPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) Option {
	return WithOutputFilter(NewPIIFilter(mode, opts...))
}
