// Package config loads shopper settings from defaults, YAML files, the
// environment and command-line overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: SHOPPER_LLM__API_KEY sets llm.api_key.
const EnvPrefix = "SHOPPER_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Agent      AgentConfig      `koanf:"agent"`
	Memory     MemoryConfig     `koanf:"memory"`
	Search     SearchConfig     `koanf:"search"`
	Scrape     ScrapeConfig     `koanf:"scrape"`
	Synthesis  SynthesisConfig  `koanf:"synthesis"`
	Guardrails GuardrailsConfig `koanf:"guardrails"`
	Tools      ToolsConfig      `koanf:"tools"`
	Server     ServerConfig     `koanf:"server"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider       string  `koanf:"provider"` // ollama, openai, anthropic, gemini, mock
	Model          string  `koanf:"model"`
	BaseURL        string  `koanf:"base_url"`
	APIKey         string  `koanf:"api_key"`
	Temperature    float64 `koanf:"temperature"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
}

type AgentConfig struct {
	Name               string `koanf:"name"`
	MaxTurns           int    `koanf:"max_turns"`
	MaxParseRetries    int    `koanf:"max_parse_retries"`
	TimeoutSeconds     int    `koanf:"timeout_seconds"`
	ToolTimeoutSeconds int    `koanf:"tool_timeout_seconds"`
	ObservationLimit   int    `koanf:"observation_limit"`
	SystemPrompt       string `koanf:"system_prompt"`
}

type MemoryConfig struct {
	Enabled      bool           `koanf:"enabled"`
	Backend      string         `koanf:"backend"` // inmemory, sqlite, qdrant
	Path         string         `koanf:"path"`
	QdrantAddr   string         `koanf:"qdrant_addr"`
	Collection   string         `koanf:"collection"`
	K            int            `koanf:"k"`
	SnippetChars int            `koanf:"snippet_chars"`
	SeedFile     string         `koanf:"seed_file"`
	Embedder     EmbedderConfig `koanf:"embedder"`
}

type EmbedderConfig struct {
	Provider  string `koanf:"provider"` // hash, ollama, openai, gemini
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
}

type SearchConfig struct {
	Backend               string `koanf:"backend"` // duckduckgo, serpapi
	APIKey                string `koanf:"api_key"`
	Endpoint              string `koanf:"endpoint"`
	Limit                 int    `koanf:"limit"`
	BreakerThreshold      int    `koanf:"breaker_threshold"`
	BreakerTimeoutSeconds int    `koanf:"breaker_timeout_seconds"`
}

type ScrapeConfig struct {
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	Concurrency    int    `koanf:"concurrency"`
	MaxAttempts    int    `koanf:"max_attempts"`
	UserAgent      string `koanf:"user_agent"`
}

type SynthesisConfig struct {
	UseLLM         bool   `koanf:"use_llm"`
	Model          string `koanf:"model"`
	MaxItems       int    `koanf:"max_items"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// GuardrailsConfig screens questions and tool observations.
type GuardrailsConfig struct {
	PromptInjection bool     `koanf:"prompt_injection"`
	ExtraPatterns   []string `koanf:"extra_patterns"`
	Directives      bool     `koanf:"directives"`
	PII             string   `koanf:"pii"` // off, mask, redact, hash
}

// ToolsConfig narrows the registered tool set. Entries are glob patterns.
type ToolsConfig struct {
	Allow    []string           `koanf:"allow"`
	Deny     []string           `koanf:"deny"`
	Policies []ToolPolicyConfig `koanf:"policies"`
}

type ToolPolicyConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"` // allow, deny
	Name   string `koanf:"name"`
	Reason string `koanf:"reason"`
}

type ServerConfig struct {
	Addr                string `koanf:"addr"`
	ReadTimeoutSeconds  int    `koanf:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `koanf:"write_timeout_seconds"`
}

type TelemetryConfig struct {
	Exporter           string  `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string  `koanf:"otlp_endpoint"`
	OTLPInsecure       bool    `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int     `koanf:"otlp_timeout_seconds"`
	ServiceName        string  `koanf:"service_name"`
	SampleRatio        float64 `koanf:"sample_ratio"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.format": "text",

		"llm.provider":        "ollama",
		"llm.model":           "llama3.1",
		"llm.base_url":        "http://localhost:11434",
		"llm.temperature":     0.0,
		"llm.timeout_seconds": 120,

		"agent.name":                 "shopper",
		"agent.max_turns":            8,
		"agent.max_parse_retries":    2,
		"agent.timeout_seconds":      300,
		"agent.tool_timeout_seconds": 60,
		"agent.observation_limit":    4000,

		"memory.enabled":            true,
		"memory.backend":            "sqlite",
		"memory.path":               "shopper_memory.db",
		"memory.qdrant_addr":        "localhost:6334",
		"memory.collection":         "user_preferences",
		"memory.k":                  3,
		"memory.snippet_chars":      300,
		"memory.embedder.provider":  "hash",
		"memory.embedder.model":     "nomic-embed-text",
		"memory.embedder.base_url":  "http://localhost:11434",
		"memory.embedder.dimension": 256,

		"search.backend":                 "duckduckgo",
		"search.limit":                   3,
		"search.breaker_threshold":       3,
		"search.breaker_timeout_seconds": 30,

		"scrape.timeout_seconds": 15,
		"scrape.concurrency":     4,
		"scrape.max_attempts":    2,

		"synthesis.use_llm":         true,
		"synthesis.max_items":       5,
		"synthesis.timeout_seconds": 60,

		"guardrails.prompt_injection": true,
		"guardrails.directives":       true,
		"guardrails.pii":              "off",

		"server.addr":                  ":8080",
		"server.read_timeout_seconds":  30,
		"server.write_timeout_seconds": 330,

		"telemetry.exporter":             "none",
		"telemetry.otlp_insecure":        true,
		"telemetry.otlp_timeout_seconds": 10,
		"telemetry.service_name":         "shopper",
		"telemetry.sample_ratio":         1.0,
	}
}

// Load reads defaults, the YAML file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile layers config.<profile>.yaml over the base file when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile (alias --env) and --set key=value
// flags out of args and loads the resulting configuration. Unrelated
// arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, _, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, opts.sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if p := profileConfigPath(path, profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", p, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	for key, value := range sets {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// envKey maps SHOPPER_MEMORY__EMBEDDER__API_KEY to memory.embedder.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// profileConfigPath returns the profile file next to base, or "" when it does not exist.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type cliOptions struct {
	path    string
	profile string
	sets    map[string]any
}

// parseCLIOverrides extracts the config flags from args and returns the
// remaining arguments untouched and in order.
func parseCLIOverrides(args []string) (cliOptions, []string, error) {
	opts := cliOptions{sets: map[string]any{}}
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") {
			rest = append(rest, arg)
			continue
		}
		switch name {
		case "config", "profile", "env", "set":
		default:
			rest = append(rest, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("flag --%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "config":
			opts.path = value
		case "profile", "env":
			opts.profile = value
		case "set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return opts, nil, fmt.Errorf("invalid --set %q: expected key=value", value)
			}
			opts.sets[key] = parseValue(raw)
		}
	}
	return opts, rest, nil
}

// parseValue decodes an override as YAML so numbers, booleans, lists and
// maps keep their type. Anything that fails to decode stays a string.
func parseValue(raw string) any {
	var v any
	if err := yamlv3.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// SplitArgs separates the config flags from the rest of args.
func SplitArgs(args []string) (rest []string, err error) {
	_, rest, err = parseCLIOverrides(args)
	return rest, err
}
