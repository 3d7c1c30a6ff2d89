// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package compare implements the product_comparison capability: it validates
// a loosely shaped product description into a Comparison record.
package compare

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/tools"
)

// ToolName is the registry name of the comparison capability.
const ToolName = "product_comparison"

// RequiredFields lists the keys every comparison input must carry.
var RequiredFields = []string{"product_name", "price", "battery_life", "pros_summary", "cons_summary"}

const placeholder = "N/A"

// Comparison is a validated, structured product record.
type Comparison struct {
	ProductName string   `json:"product_name"`
	Price       float64  `json:"price"`
	BatteryLife string   `json:"battery_life"`
	Pros        []string `json:"pros_summary"`
	Cons        []string `json:"cons_summary"`
}

// Tool returns the comparison capability.
func Tool() *tools.Func {
	return tools.NewFunc(ToolName,
		"Creates a structured product comparison record. Input is a JSON object with keys: "+strings.Join(RequiredFields, ", ")+". Returns the validated record as JSON.",
		[]core.Parameter{
			{Name: "product_name", Type: core.ParamString, Required: true},
			{Name: "price", Type: core.ParamNumber, Required: true},
			{Name: "battery_life", Type: core.ParamString, Required: true},
			{Name: "pros_summary", Type: core.ParamArray, Required: true},
			{Name: "cons_summary", Type: core.ParamArray, Required: true},
		},
		func(_ context.Context, input any) core.Result {
			c, err := Build(input)
			if err != nil {
				return core.FailFrom(err)
			}
			return core.OK(c)
		})
}

// Build validates input into a Comparison. Checks run in order: JSON shape,
// upstream scraper errors, missing fields, placeholder values, field types.
// Every failure is an INVALID_INPUT error with a message fit for the oracle.
func Build(input any) (Comparison, error) {
	var raw any
	if err := tools.DecodeJSON(input, &raw); err != nil {
		return Comparison{}, invalid("Invalid input. Provide a JSON string with keys: %s", strings.Join(RequiredFields, ", "))
	}

	data, ok := raw.(map[string]any)
	if !ok {
		if msg, isErr := upstreamError(raw); isErr {
			return Comparison{}, invalid("Source scraping error: %s", msg)
		}
		return Comparison{}, invalid("Invalid input. Provide a single JSON object with keys: %s", strings.Join(RequiredFields, ", "))
	}
	if msg, isErr := upstreamError(data); isErr {
		return Comparison{}, invalid("Source scraping error: %s", msg)
	}

	var missing []string
	for _, key := range RequiredFields {
		if _, ok := data[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Comparison{}, invalid("Missing required fields: %s", strings.Join(missing, ", "))
	}

	var c Comparison
	c.ProductName = textValue(data["product_name"])
	if isPlaceholder(c.ProductName) {
		return Comparison{}, invalid("Invalid product_name: no product title available from scraper.")
	}

	price, err := ParsePrice(data["price"])
	if err != nil {
		return Comparison{}, invalid("Invalid price: %v", err)
	}
	c.Price = price

	c.BatteryLife = textValue(data["battery_life"])
	if isPlaceholder(c.BatteryLife) {
		return Comparison{}, invalid("Invalid battery_life: value is empty or %s.", placeholder)
	}

	if c.Pros, err = stringList(data["pros_summary"]); err != nil {
		return Comparison{}, invalid("Invalid pros_summary: %v", err)
	}
	if c.Cons, err = stringList(data["cons_summary"]); err != nil {
		return Comparison{}, invalid("Invalid cons_summary: %v", err)
	}
	return c, nil
}

// ParsePrice accepts JSON numbers and strings such as "$399.99" or "₹1,299".
func ParsePrice(v any) (float64, error) {
	switch p := v.(type) {
	case float64:
		return checkPrice(p)
	case int:
		return checkPrice(float64(p))
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) || r == '.' || r == '-' {
				return r
			}
			return -1
		}, p)
		if cleaned == "" {
			return 0, fmt.Errorf("%q is not a number", p)
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", p)
		}
		return checkPrice(f)
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("%v is not a number", p)
	}
}

func checkPrice(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%v is not a valid price", f)
	}
	return f, nil
}

// upstreamError detects a scraper error payload, either a single record or a
// list whose records all failed.
func upstreamError(v any) (string, bool) {
	switch d := v.(type) {
	case map[string]any:
		status, _ := d["status"].(string)
		errVal := d["error"]
		if status != "error" && !truthy(errVal) {
			return "", false
		}
		if truthy(errVal) {
			return textValue(errVal), true
		}
		return "Scraper returned an error or empty result.", true
	case []any:
		if len(d) == 0 {
			return "Scraper returned an error or empty result.", true
		}
		var msgs []string
		for _, item := range d {
			msg, ok := upstreamError(item)
			if !ok {
				return "", false
			}
			msgs = append(msgs, msg)
		}
		return strings.Join(msgs, "; "), true
	}
	return "", false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	default:
		return true
	}
}

func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func isPlaceholder(s string) bool {
	return s == "" || strings.EqualFold(s, placeholder)
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings, found %v", item)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return errors.Newf(errors.CodeInvalidInput, format, args...).WithRecoverable(true)
}
