package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/model"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and restore pre-change snapshots",
	}

	list := &cobra.Command{
		Use:   "list [file]",
		Short: "List snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			snaps, err := g.Backups.List(source)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				if snaps == nil {
					snaps = []*model.BackupSnapshot{}
				}
				return a.outputJSON(snaps)
			}
			if len(snaps) == 0 {
				a.println("No snapshots.")
				return nil
			}
			now := g.Now()
			for _, s := range snaps {
				expiry := "expires " + s.ExpiresAt.Local().Format(time.DateTime)
				if s.Expired(now) {
					expiry = a.paint.Warning("expired")
				}
				a.printf("%s  %s  %d bytes  %s\n",
					s.CreatedAt.Local().Format(time.DateTime),
					a.paint.Info(s.SourcePath),
					s.Size,
					a.paint.Dim(expiry))
				a.printf("    %s\n", a.paint.Dim(s.SnapshotPath))
			}
			return nil
		},
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete snapshots past the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			result, err := g.Backups.Sweep()
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(result)
			}
			a.printf("Examined %d snapshot(s), deleted %d\n", result.Examined, len(result.Deleted))
			for _, p := range result.Failed {
				a.printf("  %s %s\n", a.paint.Error("failed:"), p)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <snapshot-path>",
		Short: "Copy a snapshot back over its source file",
		Long: `Copy a snapshot back over its source file.

The current content of the source is snapshotted first, so a restore can
itself be undone. A snapshot whose content no longer matches its recorded
hash is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			snap, err := g.Backups.Restore(args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(snap)
			}
			a.printf("Restored %s from %s\n", a.paint.Success(snap.SourcePath),
				snap.CreatedAt.Local().Format(time.DateTime))
			return nil
		},
	}

	cmd.AddCommand(list, sweep, restore)
	return cmd
}
