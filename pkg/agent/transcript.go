package agent

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/jllopis/shopper/pkg/llm"
)

// ErrAlreadyFinished is returned when a transcript is given a second final answer.
var ErrAlreadyFinished = stderrors.New("transcript already has a final answer")

// TurnKind classifies a recorded turn.
type TurnKind string

const (
	TurnAction      TurnKind = "action"
	TurnParseError  TurnKind = "parse_error"
	TurnUnknownTool TurnKind = "unknown_tool"
	TurnOracleError TurnKind = "oracle_error"
	TurnFinal       TurnKind = "final"
)

// Turn is one oracle round trip and its observation.
type Turn struct {
	Index       int           `json:"index"`
	Kind        TurnKind      `json:"kind"`
	Thought     string        `json:"thought,omitempty"`
	Action      string        `json:"action,omitempty"`
	ActionInput string        `json:"action_input,omitempty"`
	Observation string        `json:"observation,omitempty"`
	Failed      bool          `json:"failed,omitempty"`
	Raw         string        `json:"raw,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
}

// Transcript is the request-scoped history of a run. It holds at most one
// final turn.
type Transcript struct {
	turns []Turn
	final *FinalAnswer
}

// Append records a non-final turn and returns it with its index set.
func (t *Transcript) Append(turn Turn) Turn {
	turn.Index = len(t.turns) + 1
	t.turns = append(t.turns, turn)
	return turn
}

// Finish records the final answer turn. A second call fails.
func (t *Transcript) Finish(turn Turn, answer FinalAnswer) error {
	if t.final != nil {
		return ErrAlreadyFinished
	}
	turn.Kind = TurnFinal
	turn.Observation = ""
	t.Append(turn)
	t.final = &answer
	return nil
}

// Final returns the final answer, if any.
func (t *Transcript) Final() (*FinalAnswer, bool) {
	return t.final, t.final != nil
}

// Turns returns a copy of the recorded turns.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int { return len(t.turns) }

// Messages replays the transcript as oracle context: each turn's raw output
// as an assistant message followed by its observation as a user message.
// Oracle errors produced no output and are not replayed.
func (t *Transcript) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(t.turns))
	for _, turn := range t.turns {
		if turn.Kind == TurnOracleError || turn.Kind == TurnFinal {
			continue
		}
		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Content: strings.TrimSpace(turn.Raw)},
			llm.Message{Role: llm.RoleUser, Content: "Observation: " + turn.Observation},
		)
	}
	return msgs
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "...(truncated)"
}
