// Package governance decides which tools a deployment exposes to the agent.
package governance

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/jllopis/shopper/pkg/config"
)

// Decision captures the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
}

// PolicyEngine evaluates a tool name.
type PolicyEngine interface {
	Evaluate(ctx context.Context, tool string) Decision
}

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule matches tool names against a glob. An empty Name matches every tool.
type Rule struct {
	ID     string
	Effect Effect
	Name   string
	Reason string
}

// RuleSet is an ordered rule list; the first match wins.
type RuleSet struct {
	Rules           []Rule
	DefaultDecision Decision
}

// NewRuleSet allows whatever no rule matches.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{
		Rules:           append([]Rule(nil), rules...),
		DefaultDecision: Decision{Allowed: true, Reason: "no rule matched"},
	}
}

func (r *RuleSet) Evaluate(_ context.Context, tool string) Decision {
	for _, rule := range r.Rules {
		if !matchPattern(rule.Name, tool) {
			continue
		}
		return Decision{
			Allowed: rule.Effect != EffectDeny,
			Reason:  rule.Reason,
			RuleID:  rule.ID,
		}
	}
	return r.DefaultDecision
}

func matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, value)
	if err == nil && ok {
		return true
	}
	return pattern == value
}

// RuleSetFromConfig builds a rule set from config rules. It returns nil when
// no rule is configured.
func RuleSetFromConfig(cfg config.ToolsConfig) *RuleSet {
	if len(cfg.Policies) == 0 {
		return nil
	}
	rules := make([]Rule, 0, len(cfg.Policies))
	for i, rule := range cfg.Policies {
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			id = fmt.Sprintf("rule-%d", i+1)
		}
		rules = append(rules, Rule{
			ID:     id,
			Effect: Effect(strings.ToLower(strings.TrimSpace(rule.Effect))),
			Name:   rule.Name,
			Reason: rule.Reason,
		})
	}
	return NewRuleSet(rules)
}
