// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package synthesis implements the review_synthesis capability: many
// free-text reviews are condensed into a short list of pros and cons.
package synthesis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/jllopis/shopper/pkg/resilience"
	"github.com/jllopis/shopper/pkg/tools"
	"github.com/jllopis/shopper/pkg/tools/scrape"
)

// ToolName is the registry name of the synthesis capability.
const ToolName = "review_synthesis"

// DefaultMaxItems caps each side of the synthesis.
const DefaultMaxItems = 5

const reviewSeparator = "\n\n---\n\n"

// SystemPrompt instructs the language model.
const SystemPrompt = `You are an expert review analyst trained to summarize customer feedback.

Your task is to analyze multiple product reviews and extract a combined, structured list of Pros and Cons
that reflect the overall sentiment of the reviewers.

### Instructions
1. Read all reviews carefully.
2. Identify the most common positive points (Pros).
3. Identify the most common negative points (Cons).
4. Merge similar ideas (e.g. "great sound" and "excellent audio" become "Good sound quality").
5. Ignore neutral or irrelevant comments.
6. Return your response in this exact JSON format:

{
  "Pros": ["common pro statement 1", "common pro statement 2"],
  "Cons": ["common con statement 1", "common con statement 2"]
}

### Guidelines
- Be concise and specific: one short sentence per point.
- Do not include explanations outside the JSON.
- Keep the number of items balanced (around 3-5 per section).
- If only Pros or only Cons are present, return an empty list for the other.
- Do not invent points not reflected in the reviews.`

// Synthesis is the condensed view of a set of reviews.
type Synthesis struct {
	Pros []string `json:"Pros"`
	Cons []string `json:"Cons"`
}

// Synthesizer produces a Synthesis. With a Provider it asks the language
// model and falls back to Heuristic when the call fails or the reply is not
// the expected JSON; without one it only uses Heuristic.
type Synthesizer struct {
	Provider llm.Provider
	Model    string
	MaxItems int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Tool exposes the synthesizer as a capability.
func (s *Synthesizer) Tool() *tools.Func {
	return tools.NewFunc(ToolName,
		`Extracts aggregated Pros and Cons from multiple product reviews. Input is {"reviews": ["...", "..."]}, a JSON list of reviews, or product_scraper output. Returns {"Pros": [...], "Cons": [...]}.`,
		[]core.Parameter{{Name: "reviews", Type: core.ParamArray, Description: "review texts", Required: true}},
		func(ctx context.Context, input any) core.Result {
			reviews, err := ParseReviews(input)
			if err != nil {
				return core.FailFrom(err)
			}
			out, err := s.Synthesize(ctx, reviews)
			if err != nil {
				return core.FailFrom(err)
			}
			return core.OK(out)
		})
}

// Synthesize condenses reviews into pros and cons.
func (s *Synthesizer) Synthesize(ctx context.Context, reviews []string) (Synthesis, error) {
	maxItems := s.maxItems()
	if s.Provider == nil {
		return Heuristic(reviews, maxItems), nil
	}
	return resilience.WithFallback(ctx, func(ctx context.Context) (Synthesis, error) {
		return s.ask(ctx, reviews)
	}, func(ctx context.Context, primaryErr error) (Synthesis, error) {
		s.logger().Warn("synthesis.llm.fallback", slog.String("error", primaryErr.Error()))
		return Heuristic(reviews, maxItems), nil
	})
}

func (s *Synthesizer) ask(ctx context.Context, reviews []string) (Synthesis, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	content, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: timeout}, func(ctx context.Context) (string, error) {
		resp, err := s.Provider.Chat(ctx, llm.ChatRequest{
			Model: s.Model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: SystemPrompt},
				{Role: llm.RoleUser, Content: strings.Join(reviews, reviewSeparator)},
			},
			Temperature: 0,
		})
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	})
	if err != nil {
		return Synthesis{}, err
	}
	return ParseModelOutput(content, s.maxItems())
}

// ParseModelOutput extracts the {Pros, Cons} object from a model reply that
// may be wrapped in a code fence or surrounded by prose.
func ParseModelOutput(content string, maxItems int) (Synthesis, error) {
	text := tools.StripFence(content)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Synthesis{}, errors.New(errors.CodeLLMError, "synthesis reply contains no JSON object", nil)
	}
	var raw struct {
		Pros []string `json:"Pros"`
		Cons []string `json:"Cons"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Synthesis{}, errors.New(errors.CodeLLMError, "decode synthesis reply", err)
	}
	return Synthesis{
		Pros: normalizeItems(raw.Pros, maxItems),
		Cons: normalizeItems(raw.Cons, maxItems),
	}, nil
}

// ParseReviews accepts {"reviews": [...]}, a JSON list of strings, scraper
// records ({url, reviews}) or plain text separated by blank lines or "---".
func ParseReviews(input any) ([]string, error) {
	var decoded any
	var reviews []string
	if err := tools.DecodeJSON(input, &decoded); err != nil {
		reviews = splitText(tools.AsString(input))
	} else {
		reviews = collect(decoded)
	}

	out := reviews[:0]
	for _, r := range reviews {
		r = strings.TrimSpace(r)
		if r != "" && r != scrape.NoReviews {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no reviews provided", nil).WithRecoverable(true)
	}
	return out, nil
}

func collect(v any) []string {
	switch t := v.(type) {
	case string:
		return splitText(t)
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, collect(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"reviews", "Reviews", "input", "text"} {
			if inner, ok := t[key]; ok {
				return collect(inner)
			}
		}
	}
	return nil
}

func splitText(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(s, "\n---\n") {
		for _, para := range strings.Split(block, "\n\n") {
			if p := strings.TrimSpace(para); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// normalizeItems trims, drops blanks and case-insensitive duplicates, and
// caps the list. The result is never nil.
func normalizeItems(items []string, maxItems int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if maxItems > 0 && len(out) >= maxItems {
			break
		}
	}
	return out
}

func (s *Synthesizer) maxItems() int {
	if s.MaxItems > 0 {
		return s.MaxItems
	}
	return DefaultMaxItems
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
