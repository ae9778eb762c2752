package cli

import (
	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/model"
)

// HookEntry is one command in the host's hook settings.
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookGroup binds hook commands to an optional tool matcher.
type HookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks"`
}

// hostEventNames maps event kinds to the host's hook names.
var hostEventNames = map[model.EventKind]string{
	model.EventPrompt:   "UserPromptSubmit",
	model.EventToolUse:  "PreToolUse",
	model.EventResponse: "Stop",
}

// HostHooks builds the host "hooks" settings block from cfg.
func HostHooks(cfg *config.Config, timeout int) map[string][]HookGroup {
	out := make(map[string][]HookGroup)
	for _, kind := range model.EventKinds() {
		commands := cfg.HookCommands(kind)
		if len(commands) == 0 {
			continue
		}
		group := HookGroup{}
		if kind == model.EventToolUse {
			group.Matcher = cfg.Hooks.ToolMatcher
		}
		for _, c := range commands {
			group.Hooks = append(group.Hooks, HookEntry{Type: "command", Command: c, Timeout: timeout})
		}
		out[hostEventNames[kind]] = []HookGroup{group}
	}
	return out
}

func newHooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Show host hook registration",
	}

	var timeout int
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the host settings block that registers warden's hooks",
		Long: `Print the host settings block that registers warden's hooks.

The commands come from hooks.prompt, hooks.tool-use and hooks.response in
config.yaml; hooks.tool-matcher limits which tools trigger tool-use.
Merge the output into the host's settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws.StateDir)
			if err != nil {
				return err
			}
			return a.outputJSON(map[string]any{"hooks": HostHooks(cfg, timeout)})
		},
	}
	show.Flags().IntVar(&timeout, "timeout", 10, "per-hook timeout in seconds written to the settings")

	cmd.AddCommand(show)
	return cmd
}
