package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/internal/governance"
	"github.com/jvs-project/warden/pkg/model"
)

func newHookCmd(a *app) *cobra.Command {
	var (
		readStdin bool
		actorFlag string
	)
	cmd := &cobra.Command{
		Use:   "hook <kind> [payload...]",
		Short: "Handle one host lifecycle event",
		Long: `Handle one host lifecycle event: prompt, tool-use or response.

Fields missing from the command line are read from EVENT_KIND, ACTOR_ID,
PAYLOAD, TOOL_NAME, TARGET_PATH, REVIEW_UNITS and COVERAGE_PERCENT, then
from the host JSON document on stdin when --stdin is set.

Exit codes: 0 proceed, 1 blocked by review policy, 2 internal failure with
quality.block-on-failure set.

Examples:
  warden hook prompt "implement the parser"
  warden hook response --stdin < payload.json
  TOOL_NAME=Write TARGET_PATH=main.go warden hook tool-use`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.workspace()
			if err != nil {
				// A host hook must never fail because warden is not set up.
				fmt.Fprintf(a.errOut, "warden: not active: %v\n", firstLine(err))
				return nil
			}
			g, err := a.governance(ws)
			if err != nil {
				fmt.Fprintf(a.errOut, "warden: %v; using configured log level\n", err)
				a.logLevel = ""
				if g, err = a.governance(ws); err != nil {
					return err
				}
			}
			g.StartupSweep()

			var host *governance.HostInput
			if readStdin {
				host, err = governance.ParseHostInput(a.stdin)
				if err != nil {
					g.Logger.ErrorErr("host input ignored", err)
				}
			}

			src := governance.EventSource{
				Getenv:  a.getenv,
				Host:    host,
				ActorID: actorFlag,
			}
			if len(args) > 0 {
				src.Kind = args[0]
				src.Args = args[1:]
			}
			res := governance.NewDispatcher(g).Dispatch(cmd.Context(), governance.BuildEvent(src))

			if a.jsonOutput {
				if err := a.outputJSON(res); err != nil {
					return err
				}
			} else {
				a.println(a.paint.Severity(res.Severity, res.Message))
			}
			if res.ExitCode != model.ExitOK {
				if !a.jsonOutput {
					fmt.Fprintln(a.errOut, res.Message)
				}
				return &ExitError{Code: res.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readStdin, "stdin", false, "read the host JSON document from stdin")
	cmd.Flags().StringVar(&actorFlag, "actor", "", "actor identity (default: ACTOR_ID or the host session id)")
	return cmd
}

func firstLine(err error) string {
	s, _, _ := strings.Cut(err.Error(), "\n")
	return s
}
