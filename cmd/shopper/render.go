package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jllopis/shopper/pkg/agent"
	"github.com/jllopis/shopper/pkg/core"
)

const noneReported = "None reported"

// Key aliases accepted for each comparison field, matched case-insensitively.
var (
	nameKeys    = []string{"product_name", "product name", "title"}
	priceKeys   = []string{"price"}
	batteryKeys = []string{"battery_life", "battery"}
	prosKeys    = []string{"pros_summary", "pros"}
	consKeys    = []string{"cons_summary", "cons"}
)

// productView is a comparison record as shown to the user.
type productView struct {
	Name    string
	Price   string
	Battery string
	Pros    []string
	Cons    []string
}

// renderOutcome writes the answer of a finished run, laying out comparison
// records as product blocks, or the stop summary of a failed one.
func renderOutcome(w io.Writer, out *agent.Outcome) {
	if !out.Done() || out.Answer == nil {
		fmt.Fprintln(w, out.Summary())
		return
	}
	products, ok := productsFrom(out.Answer.Structured)
	if !ok {
		fmt.Fprintln(w, out.Answer.Text)
		return
	}
	for i, p := range products {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderProduct(w, p)
	}
}

func renderProduct(w io.Writer, p productView) {
	name := p.Name
	if name == "" {
		name = "Product"
	}
	fmt.Fprintln(w, name)
	fmt.Fprintln(w, strings.Repeat("=", len([]rune(name))))

	if p.Price == "" && p.Battery == "" {
		fmt.Fprintln(w, "No basic spec fields available.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		if p.Price != "" {
			fmt.Fprintf(tw, "Price\t%s\n", p.Price)
		}
		if p.Battery != "" {
			fmt.Fprintf(tw, "Battery life\t%s\n", p.Battery)
		}
		_ = tw.Flush()
	}

	renderList(w, "Pros", p.Pros)
	renderList(w, "Cons", p.Cons)
}

func renderList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(items) == 0 {
		fmt.Fprintf(w, "  - %s\n", noneReported)
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// productsFrom recognizes a single comparison object or a list of them.
func productsFrom(v any) ([]productView, bool) {
	switch data := v.(type) {
	case map[string]any:
		p, ok := productFrom(data)
		if !ok {
			return nil, false
		}
		return []productView{p}, true
	case []any:
		if len(data) == 0 {
			return nil, false
		}
		products := make([]productView, 0, len(data))
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			p, ok := productFrom(m)
			if !ok {
				return nil, false
			}
			products = append(products, p)
		}
		return products, true
	default:
		return nil, false
	}
}

func productFrom(m map[string]any) (productView, bool) {
	var p productView
	found := false

	if v, ok := lookup(m, nameKeys); ok {
		p.Name = scalarText(v)
		found = true
	}
	if v, ok := lookup(m, priceKeys); ok && v != nil {
		p.Price = scalarText(v)
		found = true
	}
	if v, ok := lookup(m, batteryKeys); ok {
		p.Battery = scalarText(v)
		found = true
	}
	if v, ok := lookup(m, prosKeys); ok {
		p.Pros = textList(v)
		found = true
	}
	if v, ok := lookup(m, consKeys); ok {
		p.Cons = textList(v)
		found = true
	}
	return p, found
}

// lookup returns the first non-empty value whose key matches an alias, in
// alias order.
func lookup(m map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		for key, v := range m {
			if strings.EqualFold(strings.TrimSpace(key), alias) && !isEmpty(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func textList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarText(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

// progressPrinter writes one line per recorded turn.
func progressPrinter(w io.Writer) core.EmitterFunc {
	return func(_ context.Context, ev core.Event) {
		if ev.Type != core.EventTurnRecorded {
			return
		}
		action, _ := ev.Payload["action"].(string)
		failed, _ := ev.Payload["failed"].(bool)
		var line string
		switch agent.TurnKind(fmt.Sprint(ev.Payload["kind"])) {
		case agent.TurnAction:
			line = action
			if failed {
				line += " (failed)"
			}
		case agent.TurnUnknownTool:
			line = "unknown tool " + action
		case agent.TurnParseError:
			line = "unreadable reply, asking again"
		case agent.TurnOracleError:
			line = "model call failed, retrying"
		case agent.TurnFinal:
			line = "final answer"
		default:
			return
		}
		fmt.Fprintf(w, "  turn %d: %s\n", ev.Turn, line)
	}
}
