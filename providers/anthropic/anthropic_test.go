// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, p.model)
	}
	if p.maxTokens != 4096 {
		t.Errorf("expected maxTokens 4096, got %d", p.maxTokens)
	}
	p = New(WithModel("claude-opus-4-20250514"), WithMaxTokens(8192))
	if p.model != "claude-opus-4-20250514" || p.maxTokens != 8192 {
		t.Errorf("options not applied: %s %d", p.model, p.maxTokens)
	}
}

func TestConvertMessagesMergesRoles(t *testing.T) {
	system, msgs := convertMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "rules"},
		{Role: llm.RoleUser, Content: "goal"},
		{Role: llm.RoleAssistant, Content: "Action: web_search"},
		{Role: llm.RoleUser, Content: "Observation: a"},
		{Role: llm.RoleUser, Content: "Observation: b"},
	})
	if system != "rules" {
		t.Fatalf("expected system prompt, got %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 alternating messages, got %d", len(msgs))
	}
}

func TestChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Final Answer: ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 4, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p := New(WithAPIKey("test"), WithBaseURL(srv.URL), WithRequestOptions(option.WithMaxRetries(0)))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "hi"}},
		Stop:     []string{"Observation:"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Final Answer: ok" || resp.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if stops, _ := body["stop_sequences"].([]any); len(stops) != 1 {
		t.Fatalf("expected stop sequences in request, got %v", body["stop_sequences"])
	}
}

func TestChatRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := New(WithAPIKey("test"), WithBaseURL(srv.URL), WithRequestOptions(option.WithMaxRetries(0)))
	_, err := p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if !errors.HasCode(err, errors.CodeRateLimit) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
}
