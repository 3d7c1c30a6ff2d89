package memory

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{name: "list", data: "- likes boots\n- ''\n- eco friendly\n", want: 2},
		{name: "mapping", data: "preferences:\n  - one\n  - two\n  - three\n", want: 3},
		{name: "empty", data: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeed([]byte(tt.data))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d entries, got %v", tt.want, got)
			}
		})
	}

	if _, err := ParseSeed([]byte("preferences: [unterminated")); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("- budget under $100\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadSeedFile(path)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected result %v, %v", got, err)
	}
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultPreferences(t *testing.T) {
	if len(DefaultPreferences) != 11 {
		t.Fatalf("expected 11 default preferences, got %d", len(DefaultPreferences))
	}
}
