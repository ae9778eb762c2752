package model

import "fmt"

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// EventKind identifies the host lifecycle moment a hook was invoked for.
type EventKind string

const (
	EventPrompt   EventKind = "prompt"
	EventToolUse  EventKind = "tool-use"
	EventResponse EventKind = "response"
)

// EventKinds returns all recognized event kinds in dispatch order.
func EventKinds() []EventKind {
	return []EventKind{EventPrompt, EventToolUse, EventResponse}
}

// Valid reports whether k is one of the recognized event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventPrompt, EventToolUse, EventResponse:
		return true
	}
	return false
}

// ParseEventKind accepts the canonical names plus the host's hook names.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "prompt", "UserPromptSubmit", "user-prompt":
		return EventPrompt, nil
	case "tool-use", "tool", "PreToolUse", "PostToolUse":
		return EventToolUse, nil
	case "response", "Stop", "SubagentStop":
		return EventResponse, nil
	}
	return EventKind(s), fmt.Errorf("unknown event kind %q", s)
}

// IntentTag is the coarse intent derived from prompt or response text.
type IntentTag string

const (
	IntentImplementation IntentTag = "implementation"
	IntentTest           IntentTag = "test"
	IntentReview         IntentTag = "review"
	IntentCompletion     IntentTag = "completion"
	IntentNeutral        IntentTag = "neutral"
)

// Severity is how strongly a quality gate outcome is surfaced to the host.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityNotify Severity = "notify"
	SeverityWarn   Severity = "warn"
	SeverityBlock  Severity = "block"
)

// Exit codes returned to the host.
const (
	ExitOK       = 0
	ExitBlocked  = 1
	ExitInternal = 2
)
