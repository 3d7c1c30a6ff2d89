package governance

import (
	"context"
	"testing"

	"github.com/jllopis/shopper/pkg/config"
)

func TestRuleSetEvaluate(t *testing.T) {
	engine := NewRuleSet([]Rule{
		{ID: "no-writes", Effect: "deny", Name: "add_*", Reason: "read-only deployment"},
		{ID: "search", Effect: "allow", Name: "web_search"},
	})

	if d := engine.Evaluate(context.Background(), "web_search"); !d.Allowed || d.RuleID != "search" {
		t.Fatalf("expected allow by rule search, got %+v", d)
	}
	d := engine.Evaluate(context.Background(), "add_preference")
	if d.Allowed || d.Reason != "read-only deployment" {
		t.Fatalf("expected deny, got %+v", d)
	}
	if d := engine.Evaluate(context.Background(), "product_scraper"); !d.Allowed || d.RuleID != "" {
		t.Fatalf("expected default allow, got %+v", d)
	}
}

func TestRuleSetFromConfig(t *testing.T) {
	if RuleSetFromConfig(config.ToolsConfig{}) != nil {
		t.Fatalf("expected nil rule set without policies")
	}
	engine := RuleSetFromConfig(config.ToolsConfig{
		Policies: []config.ToolPolicyConfig{{Effect: "deny", Name: "review_*", Reason: "no llm budget"}},
	})
	d := engine.Evaluate(context.Background(), "review_synthesis")
	if d.Allowed || d.RuleID != "rule-1" {
		t.Fatalf("unexpected decision %+v", d)
	}
}
