package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/warden/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Manage warden configuration",
		Long: `Manage warden configuration stored in .warden/config.yaml.

Available commands:
  show              - Show current configuration
  get <key>         - Get a configuration value
  set <key> <value> - Set a configuration value`,
		DisableFlagsInUseLine: true,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				return err
			}
			cfg, loadErr := config.Load(ws.StateDir)
			if a.jsonOutput {
				return a.outputJSON(cfg)
			}
			if loadErr != nil {
				a.printf("# %s %v\n", a.paint.Warning("invalid, showing defaults:"), loadErr)
			}
			a.printf("# Location: %s\n", config.Path(ws.StateDir))
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprint(a.out, string(data))
			return nil
		},
	}

	get := &cobra.Command{
		Use:       "get <key>",
		Short:     "Get a configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws.StateDir)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]string{"key": args[0], "value": v})
			}
			a.println(v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in .warden/config.yaml.

List values are comma separated.

Examples:
  warden config set quality.block-on-failure true
  warden config set backup.retention-days 14
  warden config set backup.exclude "*.log,*.tmp"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws.StateDir)
			if err != nil {
				return fmt.Errorf("refusing to overwrite invalid config: %w", err)
			}
			key, value := args[0], args[1]
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.Save(ws.StateDir, cfg); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]string{"key": key, "value": value})
			}
			a.printf("Set %s = %s\n", key, value)
			return nil
		},
	}

	cmd.AddCommand(show, get, set)
	return cmd
}
