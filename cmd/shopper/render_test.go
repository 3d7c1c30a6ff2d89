package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jllopis/shopper/pkg/agent"
	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/jllopis/shopper/pkg/tools"
)

func doneOutcome(text string, structured any) *agent.Outcome {
	return &agent.Outcome{
		Status: agent.StateDone,
		Answer: &agent.FinalAnswer{Text: text, Structured: structured},
	}
}

func TestRenderOutcome(t *testing.T) {
	tests := []struct {
		name string
		out  *agent.Outcome
		want []string
		not  []string
	}{
		{
			name: "plain text answer",
			out:  doneOutcome("Buy the Watch X.", nil),
			want: []string{"Buy the Watch X."},
		},
		{
			name: "comparison object",
			out: doneOutcome(`{...}`, map[string]any{
				"product_name": "Watch X",
				"price":        199.5,
				"battery_life": "7 days",
				"pros_summary": []any{"long battery"},
				"cons_summary": []any{},
			}),
			want: []string{"Watch X\n=======", "Price", "199.5", "Battery life", "7 days", "Pros:\n  - long battery", "Cons:\n  - None reported"},
		},
		{
			name: "aliases in a list",
			out: doneOutcome(`[...]`, []any{
				map[string]any{"Product Name": "Phone A", "pros": []any{"camera"}, "cons": "weak speaker"},
				map[string]any{"title": "Phone B", "battery": "2 days"},
			}),
			want: []string{"Phone A", "  - camera", "  - weak speaker", "Phone B", "2 days"},
		},
		{
			name: "unnamed product without specs",
			out:  doneOutcome(`{...}`, map[string]any{"pros": []any{"light"}}),
			want: []string{"Product\n=======", "No basic spec fields available.", "Cons:\n  - None reported"},
		},
		{
			name: "unrelated json falls back to text",
			out:  doneOutcome(`{"answer": 42}`, map[string]any{"answer": 42.0}),
			want: []string{`{"answer": 42}`},
			not:  []string{"None reported"},
		},
		{
			name: "failed run shows summary",
			out: &agent.Outcome{
				Status: agent.StateFailed,
				Reason: "turn budget exhausted",
				Err:    errors.New(errors.CodeBudgetExhausted, "turn budget exhausted", nil),
				Transcript: []agent.Turn{
					{Index: 1, Kind: agent.TurnAction, Action: "web_search", ActionInput: "watch", Observation: "boom", Failed: true},
				},
			},
			want: []string{"Agent stopped: turn budget exhausted (after 1 turns).", "1. web_search(watch) -> boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderOutcome(&buf, tt.out)
			got := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("output missing %q:\n%s", w, got)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Fatalf("output unexpectedly contains %q:\n%s", n, got)
				}
			}
		})
	}
}

func TestProductsFromRejectsMixedLists(t *testing.T) {
	if _, ok := productsFrom([]any{map[string]any{"title": "A"}, "loose string"}); ok {
		t.Fatalf("expected mixed list to be rejected")
	}
	if _, ok := productsFrom([]any{}); ok {
		t.Fatalf("expected empty list to be rejected")
	}
}

func TestProgressPrinter(t *testing.T) {
	provider := llm.NewScriptedMockProvider(
		"Action: web_search\nAction Input: watch",
		"nonsense",
		"Final Answer: Watch X",
	)
	reg := tools.MustRegistry(tools.NewFunc("web_search", "searches", nil,
		func(context.Context, any) core.Result { return core.OK("[]") }))
	a, err := agent.New("shopper", agent.WithLLM(provider), agent.WithRegistry(reg))
	if err != nil {
		t.Fatalf("agent: %v", err)
	}

	var buf bytes.Buffer
	if _, err := a.Run(context.Background(), "watch", agent.WithRunEvents(progressPrinter(&buf))); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"turn 1: web_search\n", "turn 2: unreadable reply"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in progress output:\n%s", want, got)
		}
	}
}
