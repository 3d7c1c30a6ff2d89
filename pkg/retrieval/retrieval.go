// Package retrieval folds the user's stored preferences into the goal before
// the agent loop starts.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/shopper/pkg/memory"
	"github.com/jllopis/shopper/pkg/telemetry"
)

const (
	// DefaultK is the number of preferences retrieved per goal.
	DefaultK = 3
	// DefaultSnippetChars bounds each preference snippet, in runes.
	DefaultSnippetChars = 300

	contextHeader = "Known user preferences:"
	ellipsis      = "..."
)

// Searcher finds the preferences closest to a query.
type Searcher interface {
	Nearest(ctx context.Context, query string, k int) ([]memory.PreferenceRecord, error)
}

// Retriever augments goals with nearby preferences. A failed lookup never
// fails the request: the goal is returned unchanged.
type Retriever struct {
	Store        Searcher
	K            int
	SnippetChars int
	Logger       *slog.Logger

	// Backend and Collection only label the lookup span.
	Backend    string
	Collection string
}

// New returns a Retriever with default settings.
func New(store Searcher) *Retriever {
	return &Retriever{Store: store, K: DefaultK, SnippetChars: DefaultSnippetChars}
}

// Augment returns the goal prefixed with the preference context block, or
// the goal unchanged when nothing relevant is found.
func (r *Retriever) Augment(ctx context.Context, goal string) string {
	records := r.Retrieve(ctx, goal)
	if len(records) == 0 {
		return goal
	}
	return contextHeader + "\n" + r.BuildContext(records) + "\n\nQuestion: " + goal
}

// Retrieve returns the nearest preferences, or nil on error.
func (r *Retriever) Retrieve(ctx context.Context, goal string) []memory.PreferenceRecord {
	if r == nil || r.Store == nil || strings.TrimSpace(goal) == "" {
		return nil
	}
	k := r.K
	if k <= 0 {
		k = DefaultK
	}
	ctx, span := otel.Tracer("shopper/retrieval").Start(ctx, "Retrieval.Nearest")
	defer span.End()

	records, err := r.Store.Nearest(ctx, goal, k)
	span.SetAttributes(telemetry.MemoryAttributes(r.Backend, r.Collection, len(records))...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger().WarnContext(ctx, "retrieval.failed",
			slog.String("error", err.Error()),
			slog.Int("k", k),
		)
		return nil
	}
	r.logger().DebugContext(ctx, "retrieval.complete", slog.Int("hits", len(records)), slog.Int("k", k))
	return records
}

// BuildContext renders records as blank-line separated snippets.
func (r *Retriever) BuildContext(records []memory.PreferenceRecord) string {
	limit := DefaultSnippetChars
	if r != nil && r.SnippetChars > 0 {
		limit = r.SnippetChars
	}
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		parts = append(parts, Snippet(text, limit))
	}
	return strings.Join(parts, "\n\n")
}

// Snippet truncates text to limit runes, marking the cut with "...".
func Snippet(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + ellipsis
}

func (r *Retriever) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
