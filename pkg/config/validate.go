package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	llmProviders      = []string{"ollama", "openai", "anthropic", "gemini", "mock"}
	memoryBackends    = []string{"inmemory", "sqlite", "qdrant"}
	embedderProviders = []string{"hash", "ollama", "openai", "gemini"}
	searchBackends    = []string{"duckduckgo", "serpapi"}
	exporters         = []string{"none", "stdout", "otlp"}
	logFormats        = []string{"text", "json"}
	logLevels         = []string{"debug", "info", "warn", "warning", "error"}
	piiModes          = []string{"off", "none", "mask", "redact", "hash"}
	policyEffects     = []string{"allow", "deny"}
)

// Validate checks enumerations and numeric ranges and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(oneOf(c.Log.Level, logLevels), "log.level must be one of %v, got %q", logLevels, c.Log.Level)
	check(oneOf(c.Log.Format, logFormats), "log.format must be one of %v, got %q", logFormats, c.Log.Format)

	check(oneOf(c.LLM.Provider, llmProviders), "llm.provider must be one of %v, got %q", llmProviders, c.LLM.Provider)
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	check(c.LLM.TimeoutSeconds >= 0, "llm.timeout_seconds must not be negative")

	check(c.Agent.MaxTurns > 0, "agent.max_turns must be positive, got %d", c.Agent.MaxTurns)
	check(c.Agent.MaxParseRetries >= 0, "agent.max_parse_retries must not be negative, got %d", c.Agent.MaxParseRetries)
	check(c.Agent.TimeoutSeconds >= 0, "agent.timeout_seconds must not be negative")
	check(c.Agent.ToolTimeoutSeconds >= 0, "agent.tool_timeout_seconds must not be negative")
	check(c.Agent.ObservationLimit > 0, "agent.observation_limit must be positive, got %d", c.Agent.ObservationLimit)

	if c.Memory.Enabled {
		check(oneOf(c.Memory.Backend, memoryBackends), "memory.backend must be one of %v, got %q", memoryBackends, c.Memory.Backend)
		check(oneOf(c.Memory.Embedder.Provider, embedderProviders), "memory.embedder.provider must be one of %v, got %q", embedderProviders, c.Memory.Embedder.Provider)
		check(c.Memory.K > 0, "memory.k must be positive, got %d", c.Memory.K)
		check(c.Memory.SnippetChars > 0, "memory.snippet_chars must be positive, got %d", c.Memory.SnippetChars)
		check(strings.TrimSpace(c.Memory.Collection) != "", "memory.collection is required")
		if strings.EqualFold(c.Memory.Backend, "sqlite") {
			check(strings.TrimSpace(c.Memory.Path) != "", "memory.path is required for the sqlite backend")
		}
		if strings.EqualFold(c.Memory.Backend, "qdrant") {
			check(strings.TrimSpace(c.Memory.QdrantAddr) != "", "memory.qdrant_addr is required for the qdrant backend")
		}
	}

	check(oneOf(c.Search.Backend, searchBackends), "search.backend must be one of %v, got %q", searchBackends, c.Search.Backend)
	check(c.Search.Limit > 0, "search.limit must be positive, got %d", c.Search.Limit)
	check(c.Search.BreakerThreshold > 0, "search.breaker_threshold must be positive, got %d", c.Search.BreakerThreshold)

	check(c.Scrape.Concurrency > 0, "scrape.concurrency must be positive, got %d", c.Scrape.Concurrency)
	check(c.Scrape.MaxAttempts > 0, "scrape.max_attempts must be positive, got %d", c.Scrape.MaxAttempts)

	check(c.Synthesis.MaxItems > 0, "synthesis.max_items must be positive, got %d", c.Synthesis.MaxItems)

	check(c.Guardrails.PII == "" || oneOf(c.Guardrails.PII, piiModes), "guardrails.pii must be one of %v, got %q", piiModes, c.Guardrails.PII)
	for _, p := range c.Guardrails.ExtraPatterns {
		_, err := regexp.Compile(p)
		check(err == nil, "guardrails.extra_patterns: invalid pattern %q: %v", p, err)
	}

	for _, p := range append(append([]string(nil), c.Tools.Allow...), c.Tools.Deny...) {
		_, err := path.Match(p, "")
		check(err == nil, "tools: invalid pattern %q", p)
	}
	for i, rule := range c.Tools.Policies {
		check(oneOf(rule.Effect, policyEffects), "tools.policies[%d].effect must be one of %v, got %q", i, policyEffects, rule.Effect)
		_, err := path.Match(rule.Name, "")
		check(err == nil, "tools.policies[%d]: invalid pattern %q", i, rule.Name)
	}

	check(c.Telemetry.SampleRatio >= 0 && c.Telemetry.SampleRatio <= 1, "telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio)
	check(oneOf(c.Telemetry.Exporter, exporters), "telemetry.exporter must be one of %v, got %q", exporters, c.Telemetry.Exporter)
	if strings.EqualFold(c.Telemetry.Exporter, "otlp") {
		check(c.Telemetry.OTLPEndpoint != "", "telemetry.otlp_endpoint is required for the otlp exporter")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
