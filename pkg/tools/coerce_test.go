package tools

import (
	"encoding/json"
	"testing"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: ""},
		{name: "trimmed", input: "  smartwatch  ", want: "smartwatch"},
		{name: "bytes", input: []byte("abc"), want: "abc"},
		{name: "raw json string", input: json.RawMessage(`"hello"`), want: "hello"},
		{name: "input key", input: map[string]any{"input": " q "}, want: "q"},
		{name: "query key", input: map[string]any{"query": "watch"}, want: "watch"},
		{name: "other map", input: map[string]any{"a": 1}, want: `{"a":1}`},
		{name: "list", input: []string{"x"}, want: `["x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AsString(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type record struct {
		Name  string `json:"name"`
		Price int    `json:"price"`
	}

	inputs := []any{
		`{"name":"watch","price":3}`,
		"```json\n{\"name\":\"watch\",\"price\":3}\n```",
		map[string]any{"name": "watch", "price": 3},
		record{Name: "watch", Price: 3},
	}
	for _, in := range inputs {
		var got record
		if err := DecodeJSON(in, &got); err != nil {
			t.Fatalf("decode %#v: %v", in, err)
		}
		if got.Name != "watch" || got.Price != 3 {
			t.Fatalf("unexpected record %+v", got)
		}
	}

	var out record
	if err := DecodeJSON("not json", &out); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatalf("expected error for blank input")
	}
}
