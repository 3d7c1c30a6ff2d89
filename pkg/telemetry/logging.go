// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/shopper/pkg/core"
)

// ConfigureSlog sets the global slog logger with trace-aware attributes.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a logger whose records carry the correlation ids found
// in the context given to the *Context methods: trace_id, span_id, run_id
// and session_id.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	return slog.New(newSlogHandler(output, ParseLogLevel(level), format))
}

// NewLeveledLogger is NewLogger with a level that can change at runtime.
func NewLeveledLogger(output io.Writer, level *slog.LevelVar, format string) *slog.Logger {
	return slog.New(newSlogHandler(output, level, format))
}

func newSlogHandler(output io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &contextHandler{next: slog.NewJSONHandler(output, opts)}
	}
	return &contextHandler{next: slog.NewTextHandler(output, opts)}
}

// correlation lists the ids copied from the context into every record.
var correlation = []struct {
	key     string
	extract func(context.Context) string
}{
	{"trace_id", func(ctx context.Context) string {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			return sc.TraceID().String()
		}
		return ""
	}},
	{"span_id", func(ctx context.Context) string {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			return sc.SpanID().String()
		}
		return ""
	}},
	{"run_id", func(ctx context.Context) string {
		id, _ := core.RunID(ctx)
		return id
	}},
	{"session_id", func(ctx context.Context) string {
		id, _ := core.SessionID(ctx)
		return id
	}},
}

// contextHandler adds correlation ids unless the call site already set them.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	var present map[string]bool
	for _, c := range correlation {
		v := c.extract(ctx)
		if v == "" {
			continue
		}
		if present == nil {
			present = attrKeys(record)
		}
		if !present[c.key] {
			record.AddAttrs(slog.String(c.key, v))
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Unknown
// values map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrKeys(record slog.Record) map[string]bool {
	keys := make(map[string]bool, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		keys[attr.Key] = true
		return true
	})
	return keys
}
