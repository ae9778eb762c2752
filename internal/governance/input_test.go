package governance_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/governance"
	"github.com/jvs-project/warden/pkg/model"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParseHostInput(t *testing.T) {
	in, err := governance.ParseHostInput(strings.NewReader(`{
		"hook_event_name": "PreToolUse",
		"session_id": "sess-1",
		"tool_name": "Edit",
		"tool_input": {"file_path": "/repo/main.go", "old_string": "a"}
	}`))
	require.NoError(t, err)

	ev := governance.BuildEvent(governance.EventSource{Host: in})
	assert.Equal(t, model.EventToolUse, ev.Kind)
	assert.Equal(t, "sess-1", ev.ActorID)
	assert.Equal(t, "Edit", ev.ToolName)
	assert.Equal(t, "/repo/main.go", ev.TargetPath)
}

func TestParseHostInput_Empty(t *testing.T) {
	in, err := governance.ParseHostInput(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, governance.HostInput{}, *in)
}

func TestParseHostInput_Malformed(t *testing.T) {
	_, err := governance.ParseHostInput(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestBuildEvent_Priority(t *testing.T) {
	host := &governance.HostInput{HookEventName: "Stop", SessionID: "sess", LastAssistantMessage: "from host"}

	ev := governance.BuildEvent(governance.EventSource{
		Kind: "prompt",
		Args: []string{"from", "args"},
		Getenv: env(map[string]string{
			governance.EnvEventKind: "response",
			governance.EnvActorID:   "alice",
			governance.EnvPayload:   "from env",
		}),
		Host: host,
	})
	assert.Equal(t, model.EventPrompt, ev.Kind)
	assert.Equal(t, "alice", ev.ActorID)
	assert.Equal(t, "from args", ev.Payload)

	ev = governance.BuildEvent(governance.EventSource{Host: host})
	assert.Equal(t, model.EventResponse, ev.Kind)
	assert.Equal(t, "from host", ev.Payload)
}

func TestBuildEvent_EnvFields(t *testing.T) {
	ev := governance.BuildEvent(governance.EventSource{
		Getenv: env(map[string]string{
			governance.EnvEventKind:   "tool-use",
			governance.EnvToolName:    "Write",
			governance.EnvTargetPath:  "a.go",
			governance.EnvReviewUnits: "a.go, b.go,,",
			governance.EnvCoverage:    "75%",
		}),
	})
	assert.Equal(t, model.EventToolUse, ev.Kind)
	assert.Equal(t, "Write", ev.ToolName)
	assert.Equal(t, []string{"a.go", "b.go"}, ev.Units)
	require.NotNil(t, ev.Coverage)
	assert.Equal(t, 75, *ev.Coverage)
}

func TestBuildEvent_UnknownKindKept(t *testing.T) {
	ev := governance.BuildEvent(governance.EventSource{Kind: "Notification"})
	assert.Equal(t, model.EventKind("Notification"), ev.Kind)
	assert.False(t, ev.Kind.Valid())
}

func TestParsePercent(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "100": 100, " 42% ": 42} {
		got, ok := governance.ParsePercent(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "-1", "101", "abc"} {
		_, ok := governance.ParsePercent(in)
		assert.False(t, ok, in)
	}
}
