package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	kerrors "github.com/jllopis/shopper/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi there"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Fatalf("expected 'Hello world', got %q", resp.Content)
	}
	if resp.Usage != (Usage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4}) {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if mock.Name() != "mock" || mock.Calls() != 1 {
		t.Fatalf("unexpected name %q or calls %d", mock.Name(), mock.Calls())
	}
}

func TestMockProviderErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := (&MockProvider{Err: boom}).Chat(context.Background(), ChatRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&MockProvider{Response: "x"}).Chat(ctx, ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("first", "second")
	ctx := context.Background()

	if mock.PeekNext() != "first" {
		t.Fatalf("expected first response queued")
	}
	for _, want := range []string{"first", "second"} {
		resp, err := mock.Chat(ctx, ChatRequest{Model: "m"})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != want {
			t.Fatalf("expected %q, got %q", want, resp.Content)
		}
	}
	if _, err := mock.Chat(ctx, ChatRequest{}); !errors.Is(err, ErrScriptExhausted) {
		t.Fatalf("expected exhausted script, got %v", err)
	}
	if mock.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.Calls())
	}
	if req, ok := mock.LastRequest(); !ok || req.Model != "" {
		t.Fatalf("unexpected last request %+v", req)
	}
}

func TestScriptedMockProviderRepeat(t *testing.T) {
	mock := NewScriptedMockProvider("loop")
	mock.Repeat = true
	for i := 0; i < 3; i++ {
		resp, err := mock.Chat(context.Background(), ChatRequest{})
		if err != nil || resp.Content != "loop" {
			t.Fatalf("call %d: got %v, %v", i, resp, err)
		}
	}
}

func TestComplete(t *testing.T) {
	var seen ChatRequest
	mock := &MockProvider{ChatFunc: func(_ context.Context, req ChatRequest) (*ChatResponse, error) {
		seen = req
		return &ChatResponse{Content: "ok"}, nil
	}}
	out, err := Complete(context.Background(), mock, "model-x", "be brief", "hello")
	if err != nil || out != "ok" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != RoleSystem || seen.Model != "model-x" {
		t.Fatalf("unexpected request %+v", seen)
	}
}

func TestOllamaProviderChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Final Answer: hi"},"done":true,"prompt_eval_count":7,"eval_count":3}` + "\n"))
	}))
	defer srv.Close()

	p, err := NewOllama(srv.URL, "llama3")
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		Temperature: 0.2,
		Stop:        []string{"Observation:"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Final Answer: hi" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Fatalf("expected 10 tokens, got %d", resp.Usage.TotalTokens)
	}
	if got["model"] != "llama3" {
		t.Fatalf("expected default model in request, got %v", got["model"])
	}
	opts, _ := got["options"].(map[string]any)
	if opts["temperature"] != 0.2 {
		t.Fatalf("expected temperature option, got %v", opts)
	}
}

func TestOllamaProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := NewOllama(srv.URL, "missing")
	if _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestStatusError(t *testing.T) {
	cause := errors.New("upstream")
	tests := []struct {
		status      int
		code        kerrors.ErrorCode
		recoverable bool
	}{
		{status: 0, code: kerrors.CodeLLMError, recoverable: true},
		{status: 401, code: kerrors.CodeUnauthorized},
		{status: 403, code: kerrors.CodeUnauthorized},
		{status: 429, code: kerrors.CodeRateLimit, recoverable: true},
		{status: 400, code: kerrors.CodeLLMError},
		{status: 503, code: kerrors.CodeLLMError, recoverable: true},
	}
	for _, tt := range tests {
		err := StatusError("openai", tt.status, cause)
		if err.Code != tt.code || err.Recoverable != tt.recoverable {
			t.Fatalf("status %d: got %s recoverable=%v", tt.status, err.Code, err.Recoverable)
		}
		if !errors.Is(err, cause) || err.Context["provider"] != "openai" {
			t.Fatalf("status %d: lost cause or provider: %+v", tt.status, err)
		}
	}
}
