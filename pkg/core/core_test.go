package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	kerrors "github.com/jllopis/shopper/pkg/errors"
)

func TestResultObservation(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{name: "string passthrough", result: OK("plain text"), want: "plain text"},
		{name: "nil output", result: OK(nil), want: ""},
		{name: "json output", result: OK(map[string]int{"n": 1}), want: `{"n":1}`},
		{name: "failure", result: Fail(kerrors.CodeInvalidInput, "missing %s", "price"), want: `{"error":"missing price"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Observation(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFailFromKeepsCode(t *testing.T) {
	res := FailFrom(kerrors.New(kerrors.CodeTimeout, "slow", nil))
	if !res.Failed() || res.Failure.Code != kerrors.CodeTimeout {
		t.Fatalf("expected TIMEOUT failure, got %+v", res.Failure)
	}
	if res.Failure.Reason != "slow" {
		t.Fatalf("expected typed errors to report their message, got %q", res.Failure.Reason)
	}

	res = FailFrom(errors.New("boom"))
	if res.Failure.Code != kerrors.CodeToolFailure {
		t.Fatalf("expected plain errors to map to TOOL_FAILURE, got %s", res.Failure.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(res.Observation()), &payload); err != nil {
		t.Fatalf("observation is not json: %v", err)
	}
	if !strings.Contains(payload["error"], "boom") {
		t.Fatalf("unexpected observation %q", res.Observation())
	}
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if !strings.HasPrefix(id, "run-") {
		t.Fatalf("unexpected run id %q", id)
	}
	_, again := EnsureRunID(ctx)
	if again != id {
		t.Fatalf("expected existing run id to be reused")
	}
}

func TestSessionID(t *testing.T) {
	if _, ok := SessionID(context.Background()); ok {
		t.Fatalf("expected no session id")
	}
	id := NewSessionID()
	if !strings.HasPrefix(id, "chat-") || id == NewSessionID() {
		t.Fatalf("unexpected session id %q", id)
	}
	got, ok := SessionID(WithSessionID(context.Background(), id))
	if !ok || got != id {
		t.Fatalf("expected %q, got %q", id, got)
	}
}
