package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type (
	runIDKey     struct{}
	sessionIDKey struct{}
)

// WithRunID attaches a run id to the context. One run is one walk of the
// agent loop.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureRunID returns ctx with a run id, creating one when missing.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := newID("run-")
	return WithRunID(ctx, id), id
}

// WithSessionID groups several runs, such as the questions of one chat
// session or the requests of one HTTP client.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the session id if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	return newID("chat-")
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
