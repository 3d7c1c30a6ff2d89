package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/shopper/pkg/agent"
	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/governance"
	"github.com/jllopis/shopper/pkg/guardrails"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/jllopis/shopper/pkg/memory"
	geminiembed "github.com/jllopis/shopper/pkg/memory/gemini"
	ollamaembed "github.com/jllopis/shopper/pkg/memory/ollama"
	openaiembed "github.com/jllopis/shopper/pkg/memory/openai"
	"github.com/jllopis/shopper/pkg/memory/qdrant"
	"github.com/jllopis/shopper/pkg/resilience"
	"github.com/jllopis/shopper/pkg/retrieval"
	"github.com/jllopis/shopper/pkg/telemetry"
	"github.com/jllopis/shopper/pkg/tools"
	"github.com/jllopis/shopper/pkg/tools/compare"
	"github.com/jllopis/shopper/pkg/tools/scrape"
	"github.com/jllopis/shopper/pkg/tools/search"
	"github.com/jllopis/shopper/pkg/tools/synthesis"
	"github.com/jllopis/shopper/providers/anthropic"
	"github.com/jllopis/shopper/providers/gemini"
	"github.com/jllopis/shopper/providers/openai"
)

// mockAnswer is what the mock provider replies with when no script is set.
const mockAnswer = "Thought: I can answer directly.\nFinal Answer: This is a mock response."

// app holds everything a command needs. Preferences is nil when memory is
// disabled.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *telemetry.AgentMetrics
	provider    llm.Provider
	preferences *memory.PreferenceStore
	registry    *tools.Registry
	agent       *agent.Agent

	closers []func() error
}

// appOptions selects which parts newApp builds.
type appOptions struct {
	withLLM    bool
	withMemory bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, opts appOptions) error {
	var err error
	a.metrics, err = telemetry.NewAgentMetrics()
	if err != nil {
		return fmt.Errorf("agent metrics: %w", err)
	}

	if opts.withMemory && a.cfg.Memory.Enabled {
		if a.preferences, err = a.newPreferences(ctx); err != nil {
			return err
		}
	}
	if opts.withLLM {
		if a.provider, err = a.newProvider(ctx); err != nil {
			return err
		}
	}
	if a.registry, err = a.newRegistry(); err != nil {
		return err
	}
	if opts.withLLM {
		if a.agent, err = a.newAgent(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases clients in reverse creation order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("app.close", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

func (a *app) newProvider(ctx context.Context) (llm.Provider, error) {
	c := a.cfg.LLM
	switch strings.ToLower(c.Provider) {
	case "ollama":
		return llm.NewOllama(c.BaseURL, c.Model)
	case "openai":
		opts := []openai.Option{openai.WithModel(c.Model)}
		if c.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(c.APIKey))
		}
		if c.BaseURL != "" && !isOllamaDefault(c.BaseURL) {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.New(opts...), nil
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(c.Model)}
		if c.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(c.APIKey))
		}
		if c.BaseURL != "" && !isOllamaDefault(c.BaseURL) {
			opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
		}
		return anthropic.New(opts...), nil
	case "gemini":
		return gemini.New(ctx, c.APIKey, gemini.WithModel(c.Model))
	case "mock":
		return &llm.MockProvider{Response: mockAnswer}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", c.Provider)
	}
}

// isOllamaDefault reports whether url is the ollama default left over from
// the shared llm.base_url default.
func isOllamaDefault(url string) bool {
	return strings.Contains(url, "localhost:11434")
}

func (a *app) newEmbedder(ctx context.Context) (memory.Embedder, error) {
	c := a.cfg.Memory.Embedder
	switch strings.ToLower(c.Provider) {
	case "hash":
		return memory.NewHashEmbedder(c.Dimension), nil
	case "ollama":
		return ollamaembed.NewEmbedder(c.BaseURL, c.Model)
	case "openai":
		baseURL := c.BaseURL
		if isOllamaDefault(baseURL) {
			baseURL = ""
		}
		return openaiembed.NewEmbedder(c.APIKey, baseURL, c.Model), nil
	case "gemini":
		e, err := geminiembed.NewEmbedder(ctx, c.APIKey, c.Model)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e.Close)
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", c.Provider)
	}
}

func (a *app) newVectorStore(ctx context.Context) (memory.VectorStore, error) {
	c := a.cfg.Memory
	switch strings.ToLower(c.Backend) {
	case "inmemory":
		return memory.NewInMemoryStore(), nil
	case "sqlite":
		s, err := memory.OpenSQLite(ctx, c.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "qdrant":
		s, err := qdrant.New(c.QdrantAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", c.Backend)
	}
}

func (a *app) newPreferences(ctx context.Context) (*memory.PreferenceStore, error) {
	store, err := a.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := a.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := memory.NewPreferenceStore(store, embedder,
		memory.WithCollection(a.cfg.Memory.Collection),
		memory.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := prefs.Initialize(ctx); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (a *app) newSearchBackend() search.Backend {
	c := a.cfg.Search
	if strings.EqualFold(c.Backend, "serpapi") {
		b := search.NewSerpAPI(c.APIKey)
		if c.Endpoint != "" {
			b.Endpoint = c.Endpoint
		}
		return b
	}
	b := search.NewDuckDuckGo()
	if c.Endpoint != "" {
		b.Endpoint = c.Endpoint
	}
	return b
}

// newRegistry builds the closed set of capabilities. The synthesis tool only
// consults the language model when one was built.
func (a *app) newRegistry() (*tools.Registry, error) {
	cfg := a.cfg
	metrics := a.metrics
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             search.ToolName,
		FailureThreshold: cfg.Search.BreakerThreshold,
		Timeout:          seconds(cfg.Search.BreakerTimeoutSeconds),
		OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
			a.logger.Warn("search.breaker",
				slog.String("name", name),
				slog.String("from", string(from)),
				slog.String("to", string(to)),
			)
			metrics.RecordCircuitBreakerState(context.Background(), name, breakerGauge(to))
		},
	})

	scraper := scrape.New()
	scraper.Concurrency = cfg.Scrape.Concurrency
	scraper.Logger = a.logger
	if cfg.Scrape.TimeoutSeconds > 0 {
		scraper.Timeout = seconds(cfg.Scrape.TimeoutSeconds)
	}
	if cfg.Scrape.UserAgent != "" {
		scraper.UserAgent = cfg.Scrape.UserAgent
	}
	if cfg.Scrape.MaxAttempts > 1 {
		scraper.Retry = resilience.DefaultRetryConfig().WithMaxAttempts(cfg.Scrape.MaxAttempts)
	}

	synth := &synthesis.Synthesizer{
		MaxItems: cfg.Synthesis.MaxItems,
		Timeout:  seconds(cfg.Synthesis.TimeoutSeconds),
		Logger:   a.logger,
	}
	if cfg.Synthesis.UseLLM && a.provider != nil {
		synth.Provider = a.provider
		synth.Model = cfg.Synthesis.Model
		if synth.Model == "" {
			synth.Model = cfg.LLM.Model
		}
	}

	candidates := []core.Tool{
		search.NewTool(a.newSearchBackend(),
			search.WithLimit(cfg.Search.Limit),
			search.WithBreaker(breaker),
			search.WithLogger(a.logger),
		),
		scraper.Tool(),
		compare.Tool(),
		synth.Tool(),
	}
	if a.preferences != nil {
		candidates = append(candidates,
			memory.AddPreferenceTool(a.preferences),
			memory.RecallPreferencesTool(a.preferences, cfg.Memory.K),
		)
	}

	allowed := governance.FromConfig(cfg.Tools).FilterTools(context.Background(), candidates,
		func(name string, d governance.Decision) {
			a.logger.Info("tools.denied",
				slog.String("tool", name),
				slog.String("reason", d.Reason),
				slog.String("rule", d.RuleID),
			)
		})
	return tools.NewRegistry(allowed...)
}

func (a *app) newAgent() (*agent.Agent, error) {
	c := a.cfg.Agent
	opts := []agent.Option{
		agent.WithLLM(a.provider),
		agent.WithModel(a.cfg.LLM.Model),
		agent.WithTemperature(a.cfg.LLM.Temperature),
		agent.WithRegistry(a.registry),
		agent.WithMaxTurns(c.MaxTurns),
		agent.WithMaxParseRetries(c.MaxParseRetries),
		agent.WithObservationLimit(c.ObservationLimit),
		agent.WithTimeout(seconds(c.TimeoutSeconds)),
		agent.WithToolTimeout(seconds(c.ToolTimeoutSeconds)),
		agent.WithLogger(a.logger),
		agent.WithMetrics(a.metrics),
	}
	if c.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(c.SystemPrompt))
	}
	if a.preferences != nil {
		opts = append(opts, agent.WithRetriever(a.retriever(a.cfg.Memory.K)))
	}
	guard, err := newGuardrails(a.cfg.Guardrails)
	if err != nil {
		return nil, err
	}
	if !guard.Empty() {
		opts = append(opts, agent.WithGuardrails(guard))
	}
	return agent.New(c.Name, opts...)
}

func newGuardrails(c config.GuardrailsConfig) (*guardrails.Guardrails, error) {
	var opts []guardrails.Option
	if c.PromptInjection {
		opts = append(opts, guardrails.WithPromptInjectionDetector(guardrails.WithInjectionPatterns(c.ExtraPatterns)))
	}
	if c.Directives {
		opts = append(opts, guardrails.WithDirectiveFilter())
	}
	mode, on, err := guardrails.ParsePIIMode(c.PII)
	if err != nil {
		return nil, err
	}
	if on {
		opts = append(opts, guardrails.WithPIIFilter(mode))
	}
	return guardrails.New(opts...), nil
}

// retriever builds a preference retriever returning k snippets.
func (a *app) retriever(k int) *retrieval.Retriever {
	r := retrieval.New(a.preferences)
	r.K = k
	r.SnippetChars = a.cfg.Memory.SnippetChars
	r.Logger = a.logger
	r.Backend = a.cfg.Memory.Backend
	r.Collection = a.cfg.Memory.Collection
	return r
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func breakerGauge(s resilience.CircuitBreakerState) int64 {
	switch s {
	case resilience.StateOpen:
		return 0
	case resilience.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
