package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/model"
)

func newReviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Manage the pending-review queue",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List units awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			pending, err := g.Reviews.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				if pending == nil {
					pending = []model.PendingReviewEntry{}
				}
				return a.outputJSON(pending)
			}
			if len(pending) == 0 {
				a.println(a.paint.Success("No units pending review."))
				return nil
			}
			a.println(a.paint.Header("Pending review:"))
			for _, p := range pending {
				a.printf("  %s  %s  %s  %s\n",
					a.paint.Warning(p.UnitID),
					p.RaisedAt.Local().Format(time.DateTime),
					p.RaisedBy,
					a.paint.Dim(p.Reason))
			}
			return nil
		},
	}

	var (
		reason    string
		actorFlag string
	)
	raise := &cobra.Command{
		Use:   "raise <unit>",
		Short: "Mark a unit as requiring review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			added, err := g.Reviews.Raise(cmd.Context(), args[0], a.actor(actorFlag), reason)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]any{"unit_id": args[0], "added": added})
			}
			if added {
				a.printf("Review required for %s\n", a.paint.Warning(args[0]))
			} else {
				a.printf("%s is already pending review\n", args[0])
			}
			return nil
		},
	}
	raise.Flags().StringVar(&reason, "reason", "raised manually", "why the unit needs review")
	raise.Flags().StringVar(&actorFlag, "actor", "", "who raised the review (default: ACTOR_ID or $USER)")

	clearCmd := &cobra.Command{
		Use:   "clear <unit>",
		Short: "Record that a unit has been reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			removed, err := g.Reviews.Clear(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]any{"unit_id": args[0], "removed": removed})
			}
			if removed {
				a.printf("Cleared review for %s\n", a.paint.Success(args[0]))
			} else {
				a.printf("%s was not pending review\n", args[0])
			}
			return nil
		},
	}

	cmd.AddCommand(list, raise, clearCmd)
	return cmd
}
