// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/openai/openai-go/option"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, p.model)
	}
	p = New(WithModel("gpt-4-turbo"), WithModel(""))
	if p.model != "gpt-4-turbo" {
		t.Errorf("expected model gpt-4-turbo, got %s", p.model)
	}
}

func TestOptionsAccumulate(t *testing.T) {
	p := New(WithAPIKey("test-key"), WithBaseURL("http://localhost:1234/v1"))
	if len(p.reqOpts) != 2 {
		t.Fatalf("expected both options to be kept, got %d", len(p.reqOpts))
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
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Final Answer: done"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	p := New(WithAPIKey("test"), WithBaseURL(srv.URL), WithRequestOptions(option.WithMaxRetries(0)))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "system"},
			{Role: llm.RoleUser, Content: "hello"},
			{Role: llm.RoleAssistant, Content: "Thought: hm"},
		},
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Final Answer: done" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if body["model"] != DefaultModel {
		t.Fatalf("expected default model, got %v", body["model"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %v", body["messages"])
	}
}

func TestChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := New(WithAPIKey("bad"), WithBaseURL(srv.URL), WithRequestOptions(option.WithMaxRetries(0)))
	_, err := p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	if !errors.HasCode(err, errors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("unexpected name %q", p.Name())
	}
}
