package cli

import (
	"fmt"
	"os"

	"github.com/jvs-project/warden/internal/governance"
	"github.com/jvs-project/warden/internal/workspace"
	"github.com/jvs-project/warden/pkg/logging"
)

// workspace resolves the state directory from WARDEN_HOME or the current
// directory.
func (a *app) workspace() (*workspace.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot get current directory: %w", err)
	}
	ws, err := workspace.Resolve(a.getenv(workspace.HomeEnv), cwd)
	if err != nil {
		return nil, fmt.Errorf("%w\n\n%s", err, notInWorkspaceHint())
	}
	return ws, nil
}

// governance builds the governance context for ws. --log-level overrides
// the configured level.
func (a *app) governance(ws *workspace.Workspace) (*governance.GovernanceContext, error) {
	var opts []governance.Option
	if a.logLevel != "" {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return nil, err
		}
		l := logging.NewLogger(level)
		l.SetOutput(a.errOut)
		opts = append(opts, governance.WithLogger(l))
	}
	return governance.New(ws.StateDir, opts...), nil
}

// open is workspace followed by governance.
func (a *app) open() (*governance.GovernanceContext, error) {
	ws, err := a.workspace()
	if err != nil {
		return nil, err
	}
	return a.governance(ws)
}

// actor resolves the acting identity for operator commands.
func (a *app) actor(flagValue string) string {
	for _, v := range []string{flagValue, a.getenv(governance.EnvActorID), a.getenv("USER")} {
		if v != "" {
			return v
		}
	}
	return "operator"
}

func notInWorkspaceHint() string {
	return fmt.Sprintf("Run 'warden init' in the project root, or set %s to a state directory.", workspace.HomeEnv)
}
