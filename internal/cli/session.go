package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/model"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and close work sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List open work sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			sessions, err := g.Sessions.List()
			if err != nil {
				return err
			}
			if a.jsonOutput {
				if sessions == nil {
					sessions = []*model.WorkSession{}
				}
				return a.outputJSON(sessions)
			}
			if len(sessions) == 0 {
				a.println("No open sessions.")
				return nil
			}
			idle := g.Config.IdleTimeout()
			now := g.Now()
			for _, s := range sessions {
				state := a.paint.Success("active")
				if s.IsIdle(now, idle) {
					state = a.paint.Dim("idle")
				}
				a.printf("%s  %s  started %s  %.1f min\n",
					a.paint.Header(s.ActorID), state,
					s.StartedAt.Local().Format(time.DateTime), s.CumulativeMinutes)
			}
			return nil
		},
	}

	end := &cobra.Command{
		Use:   "end [actor]",
		Short: "Close a session and record its work time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			var flagActor string
			if len(args) == 1 {
				flagActor = args[0]
			}
			actor := a.actor(flagActor)
			s, ended, err := g.Sessions.End(cmd.Context(), actor)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]any{"actor_id": actor, "ended": ended, "session": s})
			}
			if !ended {
				return fmt.Errorf("no open session for %s", actor)
			}
			a.printf("Ended session for %s after %.1f min\n", a.paint.Success(actor), s.CumulativeMinutes)
			return nil
		},
	}

	cmd.AddCommand(list, end)
	return cmd
}
