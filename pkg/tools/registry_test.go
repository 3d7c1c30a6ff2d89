package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
)

func echoTool(name string) *Func {
	return NewFunc(name, "echoes "+name, nil, func(_ context.Context, input any) core.Result {
		return core.OK(AsString(input))
	})
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(echoTool("web_search"), echoTool("WEB_SEARCH")); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if _, err := NewRegistry(echoTool("  ")); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestLookup(t *testing.T) {
	reg := MustRegistry(echoTool("web_search"), echoTool("product_scraper"))

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "exact", query: "web_search", want: "web_search"},
		{name: "whitespace", query: "  product_scraper\n", want: "product_scraper"},
		{name: "case", query: "Web_Search", want: "web_search"},
		{name: "backticks", query: "`product_scraper`", want: "product_scraper"},
		{name: "quotes", query: `"web_search"`, want: "web_search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, err := reg.Lookup(tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tool.Name() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, tool.Name())
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	reg := MustRegistry(echoTool("web_search"))
	tool, err := reg.Lookup("weather")
	if tool != nil {
		t.Fatalf("expected nil tool")
	}
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := reg.Lookup(""); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for empty name")
	}
}

func TestNamesAndDescribeKeepOrder(t *testing.T) {
	structured := NewFunc("product_comparison", "validates a record", []core.Parameter{
		{Name: "product_name", Type: core.ParamString, Required: true},
		{Name: "price", Type: core.ParamNumber, Required: true},
	}, func(context.Context, any) core.Result { return core.OK(nil) })
	reg := MustRegistry(echoTool("b"), echoTool("a"), structured)

	if got := strings.Join(reg.Names(), ","); got != "b,a,product_comparison" {
		t.Fatalf("unexpected order %q", got)
	}
	desc := reg.Describe()
	lines := strings.Split(desc, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "b: echoes b") {
		t.Fatalf("unexpected description %q", desc)
	}
	if !strings.Contains(lines[2], "price (number, required)") {
		t.Fatalf("expected structured params in %q", lines[2])
	}
}

func TestFuncInvokeRecoversPanics(t *testing.T) {
	tool := NewFunc("boom", "panics", nil, func(context.Context, any) core.Result {
		panic("kaboom")
	})
	res := tool.Invoke(context.Background(), "x")
	if !res.Failed() || !strings.Contains(res.Failure.Reason, "kaboom") {
		t.Fatalf("expected failure from panic, got %+v", res)
	}
	if params := tool.Parameters(); len(params) != 1 || params[0].Name != "input" {
		t.Fatalf("expected default input parameter, got %+v", params)
	}
}
