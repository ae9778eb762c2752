package governance

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jvs-project/warden/pkg/model"
)

// Environment variables read by BuildEvent when the command line does not
// supply a value.
const (
	EnvEventKind   = "EVENT_KIND"
	EnvActorID     = "ACTOR_ID"
	EnvPayload     = "PAYLOAD"
	EnvToolName    = "TOOL_NAME"
	EnvTargetPath  = "TARGET_PATH"
	EnvReviewUnits = "REVIEW_UNITS"
	EnvCoverage    = "COVERAGE_PERCENT"
	EnvEfficiency  = "EFFICIENCY_PERCENT"
)

// HostInput is the JSON document an agent host writes to a hook's stdin.
type HostInput struct {
	HookEventName        string `json:"hook_event_name"`
	SessionID            string `json:"session_id"`
	Prompt               string `json:"prompt"`
	ToolName             string `json:"tool_name"`
	LastAssistantMessage string `json:"last_assistant_message"`
	ToolInput            struct {
		FilePath     string `json:"file_path"`
		NotebookPath string `json:"notebook_path"`
		Path         string `json:"path"`
	} `json:"tool_input"`
}

// ParseHostInput decodes a host payload. Empty input yields an empty value.
func ParseHostInput(r io.Reader) (*HostInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read host input: %w", err)
	}
	var in HostInput
	if strings.TrimSpace(string(data)) == "" {
		return &in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse host input: %w", err)
	}
	return &in, nil
}

func (h *HostInput) target() string {
	for _, p := range []string{h.ToolInput.FilePath, h.ToolInput.NotebookPath, h.ToolInput.Path} {
		if p != "" {
			return p
		}
	}
	return ""
}

func (h *HostInput) payload() string {
	if h.Prompt != "" {
		return h.Prompt
	}
	return h.LastAssistantMessage
}

// EventSource collects the places an event's fields can come from, in
// priority order: explicit arguments, then the environment, then host input.
type EventSource struct {
	Kind    string
	Args    []string
	Getenv  func(string) string
	Host    *HostInput
	ActorID string
}

// BuildEvent assembles a HookEvent. An unrecognized kind is kept verbatim
// so the dispatcher can report it.
func BuildEvent(src EventSource) model.HookEvent {
	getenv := src.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	host := src.Host
	if host == nil {
		host = &HostInput{}
	}

	ev := model.HookEvent{
		Kind:       resolveKind(first(src.Kind, getenv(EnvEventKind), host.HookEventName)),
		ActorID:    first(src.ActorID, getenv(EnvActorID), host.SessionID),
		Payload:    first(strings.Join(src.Args, " "), getenv(EnvPayload), host.payload()),
		ToolName:   first(getenv(EnvToolName), host.ToolName),
		TargetPath: first(getenv(EnvTargetPath), host.target()),
		Units:      splitUnits(getenv(EnvReviewUnits)),
	}
	if v, ok := ParsePercent(getenv(EnvCoverage)); ok {
		ev.Coverage = &v
	}
	return ev
}

// ParsePercent parses an integer percentage in 0..100.
func ParsePercent(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func resolveKind(raw string) model.EventKind {
	kind, err := model.ParseEventKind(strings.TrimSpace(raw))
	if err != nil {
		return model.EventKind(raw)
	}
	return kind
}

func splitUnits(s string) []string {
	var units []string
	for _, u := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
