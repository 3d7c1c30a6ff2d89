package compare

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jllopis/shopper/pkg/errors"
)

const validInput = `{"product_name":"Acme Watch 2","price":"$399.99","battery_life":"7 days",
"pros_summary":["Long battery"],"cons_summary":["Dim display", " "]}`

func TestBuildValid(t *testing.T) {
	c, err := Build(validInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ProductName != "Acme Watch 2" || c.Price != 399.99 || c.BatteryLife != "7 days" {
		t.Fatalf("unexpected record %+v", c)
	}
	if len(c.Pros) != 1 || len(c.Cons) != 1 {
		t.Fatalf("blank list items should be dropped: %+v", c)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "not json",
			input: "compare these please",
			want:  "Invalid input. Provide a JSON string with keys: product_name, price, battery_life, pros_summary, cons_summary",
		},
		{
			name:  "scraper error record",
			input: `{"url":"https://a.example","error":"HTTP 503"}`,
			want:  "Source scraping error: HTTP 503",
		},
		{
			name:  "scraper status without message",
			input: map[string]any{"status": "error"},
			want:  "Source scraping error: Scraper returned an error or empty result.",
		},
		{
			name:  "scraper error list",
			input: `[{"url":"a","error":"HTTP 404"},{"url":"b","error":"HTTP 500"}]`,
			want:  "Source scraping error: HTTP 404; HTTP 500",
		},
		{
			name:  "missing price",
			input: `{"product_name":"X","battery_life":"1 day","pros_summary":[],"cons_summary":[]}`,
			want:  "Missing required fields: price",
		},
		{
			name:  "missing several sorted",
			input: `{"product_name":"X","battery_life":"1 day"}`,
			want:  "Missing required fields: cons_summary, price, pros_summary",
		},
		{
			name:  "placeholder name",
			input: `{"product_name":"n/a","price":1,"battery_life":"1 day","pros_summary":[],"cons_summary":[]}`,
			want:  "Invalid product_name: no product title available from scraper.",
		},
		{
			name:  "non numeric price",
			input: `{"product_name":"X","price":"call us","battery_life":"1 day","pros_summary":[],"cons_summary":[]}`,
			want:  `Invalid price: "call us" is not a number`,
		},
		{
			name:  "placeholder battery",
			input: `{"product_name":"X","price":1,"battery_life":"N/A","pros_summary":[],"cons_summary":[]}`,
			want:  "Invalid battery_life: value is empty or N/A.",
		},
		{
			name:  "pros not a list",
			input: `{"product_name":"X","price":1,"battery_life":"1 day","pros_summary":"good","cons_summary":[]}`,
			want:  "Invalid pros_summary: expected a list of strings",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.input)
			e := errors.As(err)
			if e == nil || e.Code != errors.CodeInvalidInput {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if e.Message != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, e.Message)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{float64(249), 249},
		{"₹1,299", 1299},
		{"USD 19.50", 19.5},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParsePrice(%v) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParsePrice(float64(-3)); err == nil {
		t.Fatalf("negative prices must be rejected")
	}
}

func TestToolObservation(t *testing.T) {
	tool := Tool()
	res := tool.Invoke(context.Background(), validInput)
	if res.Failed() {
		t.Fatalf("unexpected failure %+v", res.Failure)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Observation()), &out); err != nil {
		t.Fatalf("observation is not json: %v", err)
	}
	if out["product_name"] != "Acme Watch 2" || out["price"] != 399.99 {
		t.Fatalf("unexpected observation %v", out)
	}

	res = tool.Invoke(context.Background(), `{"product_name":"X"}`)
	if res.Observation() != `{"error":"Missing required fields: battery_life, cons_summary, price, pros_summary"}` {
		t.Fatalf("unexpected failure observation %s", res.Observation())
	}
}
