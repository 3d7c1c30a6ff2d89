// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span and metric attribute keys. LLM keys follow the gen_ai conventions.
const (
	// Agent attributes
	AttrAgentName     = "shopper.agent.name"
	AttrAgentModel    = "shopper.agent.model"
	AttrAgentRunID    = "shopper.agent.run_id"
	AttrAgentTurn     = "shopper.agent.turn"
	AttrAgentMaxTurns = "shopper.agent.max_turns"
	AttrAgentState    = "shopper.agent.state"
	AttrAgentStatus   = "shopper.agent.status"

	// Tool attributes
	AttrToolName       = "shopper.tool.name"
	AttrToolInput      = "shopper.tool.input"
	AttrToolResult     = "shopper.tool.result"
	AttrToolDurationMs = "shopper.tool.duration_ms"
	AttrToolSuccess    = "shopper.tool.success"
	AttrToolErrorCode  = "shopper.tool.error_code"

	// Tool set attributes
	AttrToolsCount = "shopper.tools.count"
	AttrToolsNames = "shopper.tools.names"

	// Memory and retrieval attributes
	AttrMemoryBackend    = "shopper.memory.backend"
	AttrMemoryCollection = "shopper.memory.collection"
	AttrMemoryRetrieved  = "shopper.memory.retrieved_count"

	// LLM attributes
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"

	// Parse attributes
	AttrParseOutcome = "shopper.parse.outcome"
)

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(name, model, runID string, turn, maxTurns int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, name),
		attribute.String(AttrAgentRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if turn > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentTurn, turn))
	}
	if maxTurns > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxTurns, maxTurns))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool invocation span.
func ToolCallAttributes(name string, durationMs float64, success bool, errorCode string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
	if errorCode != "" {
		attrs = append(attrs, attribute.String(AttrToolErrorCode, errorCode))
	}
	return attrs
}

// ToolCallArgsResult returns tool input and observation, truncated to maxLen.
func ToolCallArgsResult(input, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return []attribute.KeyValue{
		attribute.String(AttrToolInput, Truncate(input, maxLen)),
		attribute.String(AttrToolResult, Truncate(result, maxLen)),
	}
}

// ToolsetAttributes describes the registry offered to the oracle.
func ToolsetAttributes(names []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrToolsCount, len(names)),
		attribute.StringSlice(AttrToolsNames, names),
	}
}

// MemoryAttributes describes a preference lookup.
func MemoryAttributes(backend, collection string, retrieved int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(AttrMemoryRetrieved, retrieved)}
	if backend != "" {
		attrs = append(attrs, attribute.String(AttrMemoryBackend, backend))
	}
	if collection != "" {
		attrs = append(attrs, attribute.String(AttrMemoryCollection, collection))
	}
	return attrs
}

// LLMAttributes returns attributes for an oracle request.
func LLMAttributes(model, provider string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes for an oracle response.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Float64(AttrLLMDurationMs, durationMs),
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}

// Truncate cuts s to maxLen runes, appending "..." when it was longer.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
