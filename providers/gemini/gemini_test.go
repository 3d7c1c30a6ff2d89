// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package gemini

import (
	"testing"

	"github.com/jllopis/shopper/pkg/llm"
	"google.golang.org/genai"
)

func TestWithModel(t *testing.T) {
	p := &Provider{model: DefaultModel}
	WithModel("gemini-1.5-pro")(p)
	if p.model != "gemini-1.5-pro" {
		t.Errorf("expected model gemini-1.5-pro, got %s", p.model)
	}
	WithModel("")(p)
	if p.model != "gemini-1.5-pro" {
		t.Errorf("empty model must not override, got %s", p.model)
	}
}

func TestConvertMessages(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are helpful"},
		{Role: llm.RoleUser, Content: "Hello"},
		{Role: llm.RoleAssistant, Content: "Hi there"},
	}

	contents, systemInstruction := convertMessages(messages)

	if systemInstruction != "You are helpful" {
		t.Errorf("expected system instruction 'You are helpful', got %s", systemInstruction)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("expected assistant mapped to model role, got %s", contents[1].Role)
	}
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(llm.ChatRequest{Temperature: 0.5, Stop: []string{"Observation:"}}, "sys")
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("expected system instruction")
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.5 {
		t.Fatalf("expected temperature 0.5")
	}
	if len(cfg.StopSequences) != 1 {
		t.Fatalf("expected stop sequences")
	}
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Final "}, {Text: "Answer: x"}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     3,
			CandidatesTokenCount: 2,
			TotalTokenCount:      5,
		},
	}
	out := convertResponse(resp)
	if out.Content != "Final Answer: x" || out.Usage.TotalTokens != 5 {
		t.Fatalf("unexpected response %+v", out)
	}
	if convertResponse(nil).Content != "" {
		t.Fatalf("nil response must be empty")
	}
}
