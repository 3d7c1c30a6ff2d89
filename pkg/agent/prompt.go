// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"strings"

	"github.com/jllopis/shopper/pkg/tools"
)

// StopSequence ends generation before the oracle invents its own observation.
const StopSequence = "\nObservation:"

// DefaultSystemPrompt introduces the assistant. The tool list and the
// directive format are appended by BuildSystemPrompt.
const DefaultSystemPrompt = `You are a shopping assistant. Answer the user's question about products as well as you can, using the tools below when you need fresh information.`

const reactFormat = `Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%TOOLS%]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Never write an Action and a Final Answer in the same reply. Do not write the Observation yourself.`

// BuildSystemPrompt renders the system message for a registry.
func BuildSystemPrompt(base string, registry *tools.Registry) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultSystemPrompt
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))
	b.WriteString("\n\nYou have access to the following tools:\n\n")
	var names []string
	if registry != nil && registry.Len() > 0 {
		b.WriteString(registry.Describe())
		names = registry.Names()
	} else {
		b.WriteString("(no tools available)")
	}
	b.WriteString("\n\n")
	b.WriteString(strings.Replace(reactFormat, "%TOOLS%", strings.Join(names, ", "), 1))
	return b.String()
}

// BuildUserPrompt renders the first user message. An augmented goal already
// carries its own "Question:" line.
func BuildUserPrompt(goal, augmented string) string {
	if augmented != "" && augmented != goal {
		return augmented + "\nThought:"
	}
	return "Question: " + goal + "\nThought:"
}
