package memory

import (
	"context"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	a, _ := e.Embed(context.Background(), "Great display, poor battery")
	b, _ := e.Embed(context.Background(), "great DISPLAY poor battery!")
	if len(a) != DefaultHashDimension {
		t.Fatalf("expected default dimension, got %d", len(a))
	}
	if CosineSimilarity(a, b) < 0.999 {
		t.Fatalf("expected casing and punctuation to be ignored")
	}
}

func TestHashEmbedderBlank(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for blank text")
		}
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(1024)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "leather wallet")
	near, _ := e.Embed(ctx, "likes leather wallets and leather belts")
	far, _ := e.Embed(ctx, "fitness and wellness products")
	if CosineSimilarity(q, near) <= CosineSimilarity(q, far) {
		t.Fatalf("expected overlapping text to be closer")
	}
}
