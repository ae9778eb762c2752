package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/internal/workspace"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a warden state directory",
		Long: `Initialize a warden state directory.

This creates .warden/ in <dir> (default: the current directory) with the
default config.yaml, a format_version file and a workspace id. When
WARDEN_HOME is set and no directory is given, that path is used as the
state directory. Running init again keeps the existing config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ws  *workspace.Workspace
				err error
			)
			switch home := a.getenv(workspace.HomeEnv); {
			case len(args) == 0 && home != "":
				ws, err = workspace.InitStateDir(home)
			default:
				root := "."
				if len(args) == 1 {
					root = args[0]
				}
				if root, err = filepath.Abs(root); err != nil {
					return fmt.Errorf("resolve %s: %w", root, err)
				}
				if err = os.MkdirAll(root, 0755); err != nil {
					return fmt.Errorf("create %s: %w", root, err)
				}
				ws, err = workspace.Init(root)
			}
			if err != nil {
				return fmt.Errorf("failed to initialize workspace: %w", err)
			}

			if a.jsonOutput {
				return a.outputJSON(map[string]any{
					"state_dir":      ws.StateDir,
					"format_version": ws.FormatVersion,
					"workspace_id":   ws.WorkspaceID,
				})
			}
			a.printf("Initialized warden in %s\n", a.paint.Success(ws.StateDir))
			a.printf("  Workspace id: %s\n", ws.WorkspaceID)
			a.printf("  Register the hooks with: %s\n", a.paint.Info("warden hooks show"))
			return nil
		},
	}
}
