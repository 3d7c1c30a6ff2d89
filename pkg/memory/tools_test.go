package memory

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPreferenceTools(t *testing.T) {
	ctx := context.Background()
	prefs := newTestPreferences(t)
	add := AddPreferenceTool(prefs)
	recall := RecallPreferencesTool(prefs, 2)

	res := add.Invoke(ctx, "   ")
	if res.Failed() || res.Observation() != `{"added":false}` {
		t.Fatalf("blank add must be a no-op, got %s", res.Observation())
	}
	if n, _ := prefs.Count(ctx); n != 0 {
		t.Fatalf("expected empty store after blank add")
	}

	res = add.Invoke(ctx, map[string]any{"input": "Prefers black leather belts"})
	if res.Failed() {
		t.Fatalf("add failed: %s", res.Observation())
	}
	_ = add.Invoke(ctx, "Enjoys trail running")
	_ = add.Invoke(ctx, "Wants a smartwatch with long battery life")

	res = recall.Invoke(ctx, "leather belts")
	var out struct {
		Preferences []string `json:"preferences"`
	}
	if err := json.Unmarshal([]byte(res.Observation()), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Preferences) != 2 || out.Preferences[0] != "Prefers black leather belts" {
		t.Fatalf("unexpected recall %v", out.Preferences)
	}
}
