// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"reflect"
	"testing"

	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/tools"
)

func TestToolFilterIsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		filter  *ToolFilter
		tool    string
		allowed bool
	}{
		{name: "empty filter", filter: NewToolFilter(), tool: "web_search", allowed: true},
		{name: "in allowlist", filter: NewToolFilter(WithAllowlist([]string{"web_search", "product_*"})), tool: "product_scraper", allowed: true},
		{name: "not in allowlist", filter: NewToolFilter(WithAllowlist([]string{"web_search"})), tool: "review_synthesis", allowed: false},
		{name: "denylist", filter: NewToolFilter(WithDenylist([]string{"add_preference"})), tool: "add_preference", allowed: false},
		{
			name:    "deny wins over allow",
			filter:  NewToolFilter(WithAllowlist([]string{"*"}), WithDenylist([]string{"*_preference*"})),
			tool:    "recall_preferences",
			allowed: false,
		},
		{name: "blank patterns ignored", filter: NewToolFilter(WithAllowlist([]string{" ", ""})), tool: "web_search", allowed: true},
		{
			name:    "policy engine has last word",
			filter:  NewToolFilter(WithPolicyEngine(NewRuleSet([]Rule{{ID: "x", Effect: "deny", Name: "web_search"}}))),
			tool:    "web_search",
			allowed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := tt.filter.IsAllowed(context.Background(), tt.tool); d.Allowed != tt.allowed {
				t.Fatalf("IsAllowed(%q) = %+v, want allowed=%v", tt.tool, d, tt.allowed)
			}
		})
	}
}

func TestFilterTools(t *testing.T) {
	noop := func(context.Context, any) core.Result { return core.OK("") }
	all := []core.Tool{
		tools.NewFunc("web_search", "search", nil, noop),
		tools.NewFunc("product_scraper", "scrape", nil, noop),
		tools.NewFunc("add_preference", "remember", nil, noop),
	}

	filter := FromConfig(config.ToolsConfig{Deny: []string{"add_*"}})
	var denied []string
	kept := filter.FilterTools(context.Background(), all, func(name string, _ Decision) {
		denied = append(denied, name)
	})

	var names []string
	for _, tool := range kept {
		names = append(names, tool.Name())
	}
	if !reflect.DeepEqual(names, []string{"web_search", "product_scraper"}) {
		t.Fatalf("kept = %v", names)
	}
	if !reflect.DeepEqual(denied, []string{"add_preference"}) {
		t.Fatalf("denied = %v", denied)
	}

	if got := NewToolFilter().FilterTools(context.Background(), all, nil); len(got) != 3 {
		t.Fatalf("empty filter should keep every tool, got %d", len(got))
	}
}
