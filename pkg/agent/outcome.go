// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/tools"
)

// FinalAnswer is the oracle's terminal reply. Structured holds the decoded
// payload when the text is a JSON object or array.
type FinalAnswer struct {
	Text       string `json:"text"`
	Structured any    `json:"structured,omitempty"`
}

func newFinalAnswer(text string) FinalAnswer {
	answer := FinalAnswer{Text: strings.TrimSpace(text)}
	candidate := tools.StripFence(answer.Text)
	if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			answer.Structured = v
		}
	}
	return answer
}

// Outcome is the result of one run. Status is StateDone with an Answer, or
// StateFailed with a Reason and Err.
type Outcome struct {
	RunID      string        `json:"run_id"`
	Status     State         `json:"status"`
	Answer     *FinalAnswer  `json:"answer,omitempty"`
	Transcript []Turn        `json:"transcript"`
	Path       []State       `json:"path"`
	Reason     string        `json:"reason,omitempty"`
	Err        *errors.Error `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Done reports whether the run produced a final answer.
func (o *Outcome) Done() bool { return o != nil && o.Status == StateDone }

// Summary renders the answer of a finished run, or the reason and a short
// account of every turn of a failed one.
func (o *Outcome) Summary() string {
	if o == nil {
		return ""
	}
	if o.Done() && o.Answer != nil {
		return o.Answer.Text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Agent stopped: %s (after %d turns).", o.Reason, len(o.Transcript))
	for _, turn := range o.Transcript {
		b.WriteString("\n")
		switch turn.Kind {
		case TurnAction, TurnUnknownTool:
			fmt.Fprintf(&b, "%d. %s(%s) -> %s", turn.Index, turn.Action,
				truncate(oneLine(turn.ActionInput), 80), truncate(oneLine(turn.Observation), 160))
		default:
			fmt.Fprintf(&b, "%d. %s: %s", turn.Index, turn.Kind, truncate(oneLine(turn.Observation), 160))
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
