package model

import "time"

// HookEvent is a single host invocation. It is created once per process and
// never persisted; only records derived from it are.
type HookEvent struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	TargetPath string    `json:"target_path,omitempty"`
	Units      []string  `json:"units,omitempty"`
	Coverage   *int      `json:"coverage,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToolInvocationRecord is one line in the usage ledger (JSONL format).
type ToolInvocationRecord struct {
	ActorID    string    `json:"actor_id"`
	ToolName   string    `json:"tool_name"`
	TargetPath string    `json:"target_path,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome"`
}

// Tool invocation outcomes.
const (
	OutcomeRecorded       = "recorded"
	OutcomeSnapshot       = "snapshot"
	OutcomeSnapshotFailed = "snapshot-failed"
	OutcomeUntracked      = "untracked"
)
