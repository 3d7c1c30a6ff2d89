package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.5]}]}`))
	}))
	defer srv.Close()

	e := NewEmbedder("test", srv.URL+"/v1", "")
	vec, err := e.Embed(context.Background(), "smartwatch")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	if _, err := NewEmbedder("bad", srv.URL+"/v1", "").Embed(context.Background(), "x"); err == nil {
		t.Fatalf("expected error")
	}
}
