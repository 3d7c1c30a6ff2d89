// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/tools"
)

// ParseRetryObservation is fed back to the oracle after unparsable output.
const ParseRetryObservation = `Invalid format: could not parse your last output. Follow the "Action:" / "Action Input:" or "Final Answer:" format.`

// DirectiveKind tells an action request from a final answer.
type DirectiveKind string

const (
	DirectiveAction DirectiveKind = "action"
	DirectiveFinal  DirectiveKind = "final"
)

// Directive is one parsed oracle reply.
type Directive struct {
	Kind    DirectiveKind
	Thought string
	Action  string
	Input   string
	Final   string
}

var (
	// actionRe matches "Action:", "Action 2:", "Action Input:" and
	// "Action 2 Input 2:" in any casing at the start of a line. Group 2 is set
	// for input markers.
	actionRe      = regexp.MustCompile(`(?im)^\s*action(\s*\d+)?(\s+input(\s*\d+)?)?\s*:`)
	finalRe       = regexp.MustCompile(`(?i)\bfinal\s+answer\s*:`)
	observationRe = regexp.MustCompile(`(?im)^\s*observation\s*:`)
	thoughtRe     = regexp.MustCompile(`(?i)^\s*thought\s*:\s*`)
)

// ParseDirective parses raw oracle output into an action or a final answer.
// It tolerates surrounding whitespace, directive casing, numbered
// directives, a wrapping code fence, markdown emphasis and quotes around the
// action name or input. Only a line-leading "Action:" followed by an
// "Action Input:" counts as an action. A reply with both an action and a
// final answer, or with neither, is a PARSE_ERROR.
func ParseDirective(raw string) (Directive, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = tools.StripFence(text)
	}
	text = strings.ReplaceAll(text, "**", "")
	if text == "" {
		return Directive{}, parseError("empty output", raw)
	}

	actionStart, actionEnd, inputStart, inputEnd := -1, -1, -1, -1
	for _, m := range actionRe.FindAllStringSubmatchIndex(text, -1) {
		isInput := m[4] >= 0
		switch {
		case !isInput && actionStart < 0:
			actionStart, actionEnd = m[0], m[1]
		case isInput && actionStart >= 0 && inputStart < 0:
			inputStart, inputEnd = m[0], m[1]
		}
	}
	finalLoc := finalRe.FindStringIndex(text)
	hasAction := actionStart >= 0 && inputStart >= 0

	if hasAction && finalLoc != nil {
		return Directive{}, parseError("output contains both an action and a final answer", raw)
	}

	if finalLoc != nil {
		answer := strings.TrimSpace(text[finalLoc[1]:])
		if answer == "" {
			return Directive{}, parseError("final answer is empty", raw)
		}
		return Directive{
			Kind:    DirectiveFinal,
			Thought: thought(text[:finalLoc[0]]),
			Final:   answer,
		}, nil
	}

	if actionStart < 0 {
		return Directive{}, parseError(`no "Action:" or "Final Answer:" directive found`, raw)
	}
	if inputStart < 0 {
		return Directive{}, parseError(`action is missing its "Action Input:"`, raw)
	}

	name := text[actionEnd:inputStart]
	if nl := strings.IndexByte(strings.TrimSpace(name), '\n'); nl >= 0 {
		name = strings.TrimSpace(name)[:nl]
	}
	name = cleanName(name)
	if name == "" {
		return Directive{}, parseError("action name is empty", raw)
	}

	input := text[inputEnd:]
	if loc := observationRe.FindStringIndex(input); loc != nil {
		input = input[:loc[0]]
	}
	return Directive{
		Kind:    DirectiveAction,
		Thought: thought(text[:actionStart]),
		Action:  name,
		Input:   cleanInput(input),
	}, nil
}

func thought(prefix string) string {
	return strings.TrimSpace(thoughtRe.ReplaceAllString(strings.TrimSpace(prefix), ""))
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`'\"*[]() \t.")
}

// cleanInput strips fences, backticks and JSON string quoting from the
// action input while leaving JSON objects and lists untouched.
func cleanInput(s string) string {
	s = tools.StripFence(s)
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			return strings.TrimSpace(unquoted)
		}
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func parseError(reason, raw string) *errors.Error {
	return errors.New(errors.CodeParse, reason, nil).
		WithContext("output", truncate(raw, 200)).
		WithRecoverable(true)
}
