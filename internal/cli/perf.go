package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/internal/governance"
	"github.com/jvs-project/warden/internal/perf"
	"github.com/jvs-project/warden/pkg/model"
)

func newPerfCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perf",
		Short: "Evaluate work sessions against performance thresholds",
	}

	var efficiency string
	check := &cobra.Command{
		Use:   "check [actor]",
		Short: "Check a session for overtime and low efficiency",
		Long: `Check the actor's open session against performance.max-continuous-minutes
and, when an efficiency figure is supplied via --efficiency or
EFFICIENCY_PERCENT, against performance.min-efficiency-percent.

Violations are recorded in the ledger and reported. They never fail the
command.`,
		Args: cobra.MaximumNArgs(1),
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

			var sample perf.Sample
			if raw := firstNonEmpty(efficiency, a.getenv(governance.EnvEfficiency)); raw != "" {
				v, ok := governance.ParsePercent(raw)
				if !ok {
					return fmt.Errorf("invalid efficiency %q: expected 0-100", raw)
				}
				sample = perf.Efficiency(v)
			}

			s, err := g.Sessions.Get(actor)
			if err != nil {
				return err
			}
			if s == nil {
				s = &model.WorkSession{ActorID: actor}
			}
			violations, err := g.Perf.Check(cmd.Context(), s, sample)
			if err != nil {
				g.Logger.ErrorErr("record violations", err, map[string]any{"actor": actor})
			}

			if a.jsonOutput {
				if violations == nil {
					violations = []model.PolicyViolation{}
				}
				return a.outputJSON(map[string]any{"session": s, "violations": violations})
			}
			if len(violations) == 0 {
				a.printf("%s: within thresholds (%.1f min)\n", actor, s.CumulativeMinutes)
				return nil
			}
			for _, v := range violations {
				a.printf("%s %s\n", a.paint.Warning(string(v.Kind)+":"), v.Message)
			}
			return nil
		},
	}
	check.Flags().StringVar(&efficiency, "efficiency", "", "reported efficiency percentage (0-100)")

	cmd.AddCommand(check)
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
