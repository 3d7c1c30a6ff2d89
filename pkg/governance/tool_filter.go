// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"strings"

	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/core"
)

// ToolFilter restricts the tool set with allow and deny glob lists and an
// optional policy engine.
type ToolFilter struct {
	allowlist    []string
	denylist     []string
	policyEngine PolicyEngine
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// FromConfig builds the filter described by the tools config section.
func FromConfig(cfg config.ToolsConfig) *ToolFilter {
	opts := []ToolFilterOption{WithAllowlist(cfg.Allow), WithDenylist(cfg.Deny)}
	if rs := RuleSetFromConfig(cfg); rs != nil {
		opts = append(opts, WithPolicyEngine(rs))
	}
	return NewToolFilter(opts...)
}

// WithAllowlist sets the permitted tool names or patterns.
func WithAllowlist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) {
		tf.allowlist = appendPatterns(tf.allowlist, tools)
	}
}

// WithDenylist sets the forbidden tool names or patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) {
		tf.denylist = appendPatterns(tf.denylist, tools)
	}
}

// WithPolicyEngine attaches a policy engine consulted after the lists.
func WithPolicyEngine(engine PolicyEngine) ToolFilterOption {
	return func(tf *ToolFilter) {
		tf.policyEngine = engine
	}
}

// IsAllowed checks a tool name. The denylist wins over the allowlist; a
// non-empty allowlist rejects everything it does not match; the policy
// engine, if any, has the last word.
func (tf *ToolFilter) IsAllowed(ctx context.Context, toolName string) Decision {
	if matchesAny(toolName, tf.denylist) {
		return Decision{Reason: "tool is in denylist"}
	}
	if len(tf.allowlist) > 0 && !matchesAny(toolName, tf.allowlist) {
		return Decision{Reason: "tool is not in allowlist"}
	}
	if tf.policyEngine != nil {
		return tf.policyEngine.Evaluate(ctx, toolName)
	}
	return Decision{Allowed: true}
}

// FilterTools keeps the tools that pass the filter, in order. Rejected tools
// are reported to onDeny when it is not nil.
func (tf *ToolFilter) FilterTools(ctx context.Context, tools []core.Tool, onDeny func(name string, d Decision)) []core.Tool {
	if len(tf.allowlist) == 0 && len(tf.denylist) == 0 && tf.policyEngine == nil {
		return tools
	}
	kept := make([]core.Tool, 0, len(tools))
	for _, t := range tools {
		d := tf.IsAllowed(ctx, t.Name())
		if d.Allowed {
			kept = append(kept, t)
			continue
		}
		if onDeny != nil {
			onDeny(t.Name(), d)
		}
	}
	return kept
}

func matchesAny(toolName string, patterns []string) bool {
	for _, p := range patterns {
		if matchPattern(p, toolName) {
			return true
		}
	}
	return false
}

func appendPatterns(dst, src []string) []string {
	for _, p := range src {
		if p = strings.TrimSpace(p); p != "" {
			dst = append(dst, p)
		}
	}
	return dst
}
