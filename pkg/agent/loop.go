// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/llm"
	"github.com/jllopis/shopper/pkg/resilience"
	"github.com/jllopis/shopper/pkg/telemetry"
)

// State is a node of the loop's state machine.
type State string

const (
	StateThinking  State = "THINKING"
	StateActing    State = "ACTING"
	StateObserving State = "OBSERVING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// run is the request-scoped state of one walk through the loop.
type run struct {
	agent  *Agent
	id     string
	goal   string
	system string
	user   string
	turns  int

	state      State
	path       []State
	transcript Transcript

	pending      Turn
	directive    Directive
	parseErrors  int
	oracleErrors int
	lastErr      error

	reason string
	err    *errors.Error

	events core.EventEmitter
}

// Run walks the loop for goal until a final answer or a stop condition.
// A blank goal is rejected with an INVALID_INPUT error wrapping ErrEmptyGoal;
// every other problem ends in an Outcome with StateFailed. A per-run turn
// budget never exceeds the agent's own.
func (a *Agent) Run(ctx context.Context, goal string, opts ...RunOption) (*Outcome, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, NewInvalidInputError("invalid goal", ErrEmptyGoal)
	}
	cfg := runConfig{retriever: a.retriever, maxTurns: a.maxTurns}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.maxTurns = min(cfg.maxTurns, a.maxTurns)

	ctx, runID := core.EnsureRunID(ctx)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	ctx, span := a.tracer.Start(ctx, "Agent.Run",
		trace.WithAttributes(telemetry.AgentAttributes(a.name, a.model, runID, 0, cfg.maxTurns)...),
	)
	defer span.End()
	span.SetAttributes(telemetry.ToolsetAttributes(a.registry.Names())...)

	start := time.Now()
	a.logger.InfoContext(ctx, "agent.run.start",
		slog.String("agent", a.name),
		slog.String("goal", truncate(goal, 200)),
		slog.Int("max_turns", cfg.maxTurns),
	)
	events := a.events
	if cfg.events != nil {
		events = core.MultiEmitter{a.events, cfg.events}
	}
	events.Emit(ctx, core.NewEvent(ctx, core.EventRunStarted, a.name, runID, map[string]any{"goal": goal}))

	var blocked *errors.Error
	if check := a.guard.CheckInput(ctx, goal); check.Blocked {
		blocked = NewBlockedInputError(check.GuardrailID, check.Reason)
		a.logger.WarnContext(ctx, "agent.input.blocked",
			slog.String("guardrail", check.GuardrailID),
			slog.String("reason", check.Reason),
		)
	}

	augmented := goal
	if blocked == nil && cfg.retriever != nil && !cfg.noRetrieval {
		augmented = cfg.retriever.Augment(ctx, goal)
	}

	r := &run{
		agent:  a,
		id:     runID,
		goal:   goal,
		system: BuildSystemPrompt(a.systemPrompt, a.registry),
		user:   BuildUserPrompt(goal, augmented),
		turns:  cfg.maxTurns,
		events: events,
	}
	if blocked != nil {
		r.fail(ctx, blocked)
	} else {
		r.enter(ctx, StateThinking)
	}

	for r.state != StateDone && r.state != StateFailed {
		switch r.state {
		case StateThinking:
			r.think(ctx)
		case StateActing:
			r.act(ctx)
		case StateObserving:
			r.observe(ctx)
		}
	}

	out := r.outcome(time.Since(start))
	a.metrics.RecordRun(ctx, a.name, string(out.Status), len(out.Transcript))
	span.SetAttributes(attribute.String(telemetry.AttrAgentStatus, string(out.Status)))
	if out.Status == StateDone {
		span.SetStatus(codes.Ok, "")
		a.logger.InfoContext(ctx, "agent.run.done",
			slog.String("agent", a.name),
			slog.Int("turns", len(out.Transcript)),
			slog.Duration("duration", out.Duration),
		)
		events.Emit(ctx, core.NewEvent(ctx, core.EventRunCompleted, a.name, runID, map[string]any{"answer": out.Answer.Text}))
	} else {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Reason)
		a.metrics.RecordError(ctx, out.Err, "agent")
		a.logger.WarnContext(ctx, "agent.run.failed",
			slog.String("agent", a.name),
			slog.String("reason", out.Reason),
			slog.String("code", string(out.Err.Code)),
			slog.Int("turns", len(out.Transcript)),
		)
		events.Emit(ctx, core.NewEvent(ctx, core.EventRunFailed, a.name, runID, map[string]any{"reason": out.Reason}))
	}
	return out, nil
}

func (r *run) enter(ctx context.Context, s State) {
	r.state = s
	r.path = append(r.path, s)
	ev := core.NewEvent(ctx, core.EventStateChanged, r.agent.name, r.id, nil)
	ev.State = string(s)
	ev.Turn = r.transcript.Len()
	r.events.Emit(ctx, ev)
}

func (r *run) fail(ctx context.Context, err *errors.Error) {
	r.err = err
	r.reason = err.Message
	r.enter(ctx, StateFailed)
}

// think asks the oracle for the next directive. Every call either ends the
// run or leaves exactly one pending turn, so a run makes at most maxTurns
// oracle calls.
func (r *run) think(ctx context.Context) {
	a := r.agent
	if err := ctx.Err(); err != nil {
		r.fail(ctx, WrapContextError(err, "think"))
		return
	}
	if r.transcript.Len() >= r.turns {
		r.fail(ctx, NewBudgetExhaustedError(r.turns))
		return
	}

	msgs := make([]llm.Message, 0, 2+2*r.transcript.Len())
	msgs = append(msgs,
		llm.Message{Role: llm.RoleSystem, Content: r.system},
		llm.Message{Role: llm.RoleUser, Content: r.user},
	)
	msgs = append(msgs, r.transcript.Messages()...)

	start := time.Now()
	raw, err := r.chat(ctx, msgs)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.fail(ctx, WrapContextError(ctxErr, "llm.chat"))
			return
		}
		wrapped := WrapLLMError(err, a.model)
		a.metrics.RecordError(ctx, wrapped, "llm")
		a.logger.WarnContext(ctx, "agent.oracle.error", slog.String("error", err.Error()))
		if !wrapped.Recoverable {
			r.fail(ctx, wrapped)
			return
		}
		r.oracleErrors++
		r.lastErr = wrapped
		r.pending = Turn{
			Kind:        TurnOracleError,
			Observation: "oracle error: " + err.Error(),
			Failed:      true,
			Duration:    elapsed,
		}
		r.enter(ctx, StateObserving)
		return
	}
	r.oracleErrors = 0

	d, err := ParseDirective(raw)
	if err != nil {
		a.metrics.RecordParseFailure(ctx, a.name)
		a.logger.WarnContext(ctx, "agent.parse.error",
			slog.String("error", err.Error()),
			slog.String("output", truncate(raw, 200)),
		)
		r.parseErrors++
		r.lastErr = err
		r.pending = Turn{
			Kind:        TurnParseError,
			Observation: ParseRetryObservation,
			Failed:      true,
			Raw:         raw,
			Duration:    elapsed,
		}
		r.enter(ctx, StateObserving)
		return
	}
	r.parseErrors = 0
	r.directive = d

	if d.Kind == DirectiveFinal {
		turn := Turn{Kind: TurnFinal, Thought: d.Thought, Raw: raw, Duration: elapsed}
		if err := r.transcript.Finish(turn, newFinalAnswer(d.Final)); err != nil {
			r.fail(ctx, errors.New(errors.CodeInternal, "final answer recorded twice", err))
			return
		}
		r.enter(ctx, StateDone)
		return
	}

	r.pending = Turn{
		Kind:        TurnAction,
		Thought:     d.Thought,
		Action:      d.Action,
		ActionInput: d.Input,
		Raw:         raw,
		Duration:    elapsed,
	}
	r.enter(ctx, StateActing)
}

func (r *run) chat(ctx context.Context, msgs []llm.Message) (string, error) {
	a := r.agent
	ctx, span := a.tracer.Start(ctx, "Agent.LLM.Chat",
		trace.WithAttributes(telemetry.LLMAttributes(a.model, llm.NameOf(a.llm), len(msgs))...),
	)
	defer span.End()

	start := time.Now()
	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Model:       a.model,
		Messages:    msgs,
		Temperature: a.temperature,
		Stop:        []string{StopSequence},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
		float64(time.Since(start).Milliseconds()),
	)...)
	return resp.Content, nil
}

// act runs the pending action. Unknown tools produce a failure observation
// without side effects.
func (r *run) act(ctx context.Context) {
	a := r.agent
	turnNo := r.transcript.Len() + 1
	tool, err := a.registry.Lookup(r.directive.Action)
	if err != nil {
		a.logger.WarnContext(ctx, "agent.tool.unknown", slog.String("tool", r.directive.Action))
		r.pending.Kind = TurnUnknownTool
		r.pending.Failed = true
		r.pending.Observation = fmt.Sprintf("Unknown tool %q. Available tools: %s.",
			r.directive.Action, strings.Join(a.registry.Names(), ", "))
		r.enter(ctx, StateObserving)
		return
	}

	ctx2, span := a.tracer.Start(ctx, "Agent.Tool.Call",
		trace.WithAttributes(telemetry.AgentAttributes(a.name, a.model, r.id, turnNo, r.turns)...),
	)
	start := time.Now()
	res, err := resilience.WithTimeoutResult(ctx2, resilience.TimeoutConfig{Duration: a.toolTimeout},
		func(ctx context.Context) (core.Result, error) {
			return tool.Invoke(ctx, r.directive.Input), nil
		})
	if err != nil {
		res = core.FailFrom(err)
	}
	elapsed := time.Since(start)
	ms := float64(elapsed.Microseconds()) / 1000

	observation := res.Observation()
	if filtered := a.guard.FilterOutput(ctx, observation); filtered.Modified {
		observation = filtered.Content
		a.logger.DebugContext(ctx, "agent.observation.filtered",
			slog.String("tool", tool.Name()),
			slog.Int("redactions", len(filtered.Redactions)),
		)
	}
	var code string
	if res.Failed() {
		code = string(res.Failure.Code)
		span.SetStatus(codes.Error, res.Failure.Reason)
	}
	span.SetAttributes(telemetry.ToolCallAttributes(tool.Name(), ms, !res.Failed(), code)...)
	span.SetAttributes(telemetry.ToolCallArgsResult(r.directive.Input, observation, 1000)...)
	span.End()
	a.metrics.RecordToolCall(ctx, tool.Name(), ms, !res.Failed())

	a.logger.InfoContext(ctx, "agent.tool.complete",
		slog.String("tool", tool.Name()),
		slog.Int("turn", turnNo),
		slog.Bool("success", !res.Failed()),
		slog.Float64("duration_ms", ms),
	)

	r.pending.Action = tool.Name()
	r.pending.Failed = res.Failed()
	r.pending.Observation = truncate(observation, a.observationLimit)
	r.pending.Duration += elapsed
	r.enter(ctx, StateObserving)
}

// observe records the pending turn and decides whether another turn is allowed.
func (r *run) observe(ctx context.Context) {
	a := r.agent
	turn := r.transcript.Append(r.pending)
	r.pending = Turn{}

	ev := core.NewEvent(ctx, core.EventTurnRecorded, a.name, r.id, map[string]any{
		"kind":        string(turn.Kind),
		"action":      turn.Action,
		"observation": truncate(turn.Observation, 500),
		"failed":      turn.Failed,
	})
	ev.Turn = turn.Index
	ev.State = string(StateObserving)
	r.events.Emit(ctx, ev)

	switch {
	case r.parseErrors > a.maxParseRetries:
		r.fail(ctx, NewParseBudgetError(r.parseErrors, r.lastErr))
	case r.oracleErrors > a.maxParseRetries:
		r.fail(ctx, errors.New(errors.CodeLLMError, "oracle kept failing", r.lastErr).
			WithContext("attempts", r.oracleErrors))
	default:
		r.enter(ctx, StateThinking)
	}
}

func (r *run) outcome(d time.Duration) *Outcome {
	out := &Outcome{
		RunID:      r.id,
		Status:     r.state,
		Transcript: r.transcript.Turns(),
		Path:       append([]State(nil), r.path...),
		Reason:     r.reason,
		Err:        r.err,
		Duration:   d,
	}
	if answer, ok := r.transcript.Final(); ok {
		out.Answer = answer
	}
	return out
}

