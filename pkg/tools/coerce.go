// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AsString coerces a tool input into free text. Strings are trimmed, maps
// holding a single "input" or "query" key yield that value, and any other
// value is JSON encoded.
func AsString(input any) string {
	switch v := input.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case json.RawMessage:
		return AsString(decodeRawString(v))
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case map[string]any:
		for _, key := range []string{"input", "query", "text"} {
			if s, ok := v[key].(string); ok && len(v) == 1 {
				return strings.TrimSpace(s)
			}
		}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return strings.TrimSpace(fmt.Sprint(input))
	}
	return string(data)
}

// DecodeJSON decodes a tool input into out. Strings and byte slices are parsed
// as JSON text; maps, slices and structs are round-tripped through JSON.
func DecodeJSON(input any, out any) error {
	var data []byte
	switch v := input.(type) {
	case nil:
		return fmt.Errorf("empty input")
	case string:
		data = []byte(StripFence(v))
	case []byte:
		data = []byte(StripFence(string(v)))
	case json.RawMessage:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode input: %w", err)
		}
		data = encoded
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("empty input")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

// StripFence removes a surrounding markdown code fence and whitespace.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		if !strings.ContainsAny(s[:nl], "{[\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func decodeRawString(raw json.RawMessage) any {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
