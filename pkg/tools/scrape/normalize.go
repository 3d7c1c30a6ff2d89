// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package scrape

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/tools"
)

// NormalizeURLs turns any accepted input shape into a flat URL list:
//
//	[]string / []any                  the list itself
//	`["https://a", "https://b"]`      a JSON-encoded list
//	`"https://a"`                     a JSON-encoded scalar
//	https://a                         a single URL string
//	{"urls": [...]} / {"url": "..."}  an object wrapping either form
//
// Blank entries are dropped. An input with no URL left is INVALID_INPUT.
func NormalizeURLs(input any) ([]string, error) {
	var urls []string
	switch v := input.(type) {
	case nil:
	case []string:
		urls = append(urls, v...)
	case []any:
		for _, item := range v {
			urls = append(urls, scalarString(item))
		}
	case json.RawMessage:
		return NormalizeURLs(string(v))
	case []byte:
		return NormalizeURLs(string(v))
	case string:
		urls = normalizeString(v)
	case map[string]any:
		for _, key := range []string{"urls", "url", "url_list", "input"} {
			if inner, ok := v[key]; ok {
				return NormalizeURLs(inner)
			}
		}
	default:
		urls = []string{scalarString(v)}
	}

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.Trim(strings.TrimSpace(u), "'\"`")
		if u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no product URLs provided", nil)
	}
	return out, nil
}

func normalizeString(s string) []string {
	s = tools.StripFence(s)
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return []string{s}
	}
	switch v := parsed.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarString(item))
		}
		return out
	case map[string]any:
		urls, err := NormalizeURLs(v)
		if err != nil {
			return nil
		}
		return urls
	case nil:
		return nil
	default:
		return []string{scalarString(v)}
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
