package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the agent loop.
type EventType string

const (
	EventRunStarted   EventType = "agent.run.started"
	EventStateChanged EventType = "agent.state"
	EventTurnRecorded EventType = "agent.turn"
	EventRunCompleted EventType = "agent.run.completed"
	EventRunFailed    EventType = "agent.run.failed"
)

// Event is one step of a run as seen from outside the loop.
type Event struct {
	Type      EventType
	Agent     string
	RunID     string
	SessionID string
	Turn      int
	State     string
	Timestamp time.Time
	Payload   map[string]any
}

type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event Event)

func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

type NoopEventEmitter struct{}

func (NoopEventEmitter) Emit(context.Context, Event) {}

// MultiEmitter fans every event out to each emitter in order.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}

// NewEvent stamps an event with the current time and the session id
// carried by ctx, if any.
func NewEvent(ctx context.Context, eventType EventType, agent, runID string, payload map[string]any) Event {
	session, _ := SessionID(ctx)
	return Event{
		Type:      eventType,
		Agent:     agent,
		RunID:     runID,
		SessionID: session,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
