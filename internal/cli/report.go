package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/internal/report"
	"github.com/jvs-project/warden/pkg/model"
)

func newReportCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize one day of activity",
		Long: `Summarize one day of public ledger entries and tool invocations.

Dates are UTC calendar days in YYYY-MM-DD form; the default is today.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open()
			if err != nil {
				return err
			}
			if date == "" {
				date = g.Now().UTC().Format(model.DateLayout)
			} else if _, err := time.Parse(model.DateLayout, date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
			}

			entries, err := g.Ledger.ReadPublic(date)
			if err != nil {
				return err
			}
			usage, err := g.Tracker.Usage().Read(date)
			if err != nil {
				return err
			}
			r, err := report.Build(cmd.Context(), date, entries, usage)
			if err != nil {
				return err
			}

			if a.jsonOutput {
				return a.outputJSON(r)
			}
			a.println(a.paint.Header("Activity report for " + r.Date))
			a.printf("  Ledger entries: %d\n", r.Entries)
			a.printCounts("By kind", r.ByKind)
			a.printCounts("By actor", r.ByActor)
			a.printCounts("By intent", r.ByIntent)
			a.printf("  Tool uses: %d\n", r.ToolUses)
			a.printCounts("By tool", r.ByTool)
			a.printCounts("By outcome", r.ByOutcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to report (YYYY-MM-DD, UTC)")
	return cmd
}

func (a *app) printCounts(title string, counts []report.Count) {
	if len(counts) == 0 {
		return
	}
	a.printf("  %s:\n", title)
	for _, c := range counts {
		a.printf("    %-24s %d\n", c.Key, c.N)
	}
}
