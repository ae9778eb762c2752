package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/internal/doctor"
	"github.com/jvs-project/warden/pkg/model"
)

func newDoctorCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check state directory health",
		Long: `Check state directory health.

Runs diagnostic checks on the state directory and reports any issues.
Use --strict to also verify every backup snapshot against its hash.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				return err
			}
			result, err := doctor.NewDoctor(ws.StateDir).Check(cmd.Context(), strict)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}

			if a.jsonOutput {
				if err := a.outputJSON(result); err != nil {
					return err
				}
			} else if len(result.Findings) == 0 {
				a.println(a.paint.Success("State directory is healthy."))
			} else {
				a.printf("Findings (%d):\n", len(result.Findings))
				for _, f := range result.Findings {
					a.printf("  [%s] %s: %s\n", findingLabel(a, f.Severity), f.Category, f.Description)
				}
			}

			if !result.Healthy {
				return &ExitError{Code: model.ExitBlocked}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "verify every snapshot's content hash")
	return cmd
}

func findingLabel(a *app, severity string) string {
	switch severity {
	case doctor.SeverityCritical, doctor.SeverityError:
		return a.paint.Error(severity)
	case doctor.SeverityWarning:
		return a.paint.Warning(severity)
	}
	return a.paint.Dim(severity)
}
