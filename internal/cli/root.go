// Package cli implements the warden command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/color"
	"github.com/jvs-project/warden/pkg/model"
)

// app holds the global flags and I/O for one command tree.
type app struct {
	jsonOutput bool
	logLevel   string
	noColor    bool
	getenv     func(string) string
	stdin      io.Reader
	out        io.Writer
	errOut     io.Writer
	paint      color.Painter
}

// ExitError carries a process exit code. Its message, if any, has already
// been shown to the user.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// NewRootCmd builds the warden command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Getenv)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	a := &app{getenv: getenv}

	root := &cobra.Command{
		Use:   "warden",
		Short: "warden - activity governance for AI-assisted coding sessions",
		Long: `warden is invoked by an agent host at three lifecycle moments: prompt
submission, tool invocation and response emission. It classifies intent,
gates completion claims behind review, snapshots files before modifying
tools touch them and keeps an append-only activity ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.stdin = cmd.InOrStdin()
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			a.paint = color.Detect(a.out, a.noColor, a.getenv)
		},
	}
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error, off); defaults to logging.level")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newHookCmd(a),
		newInitCmd(a),
		newReviewCmd(a),
		newBackupCmd(a),
		newSessionCmd(a),
		newPerfCmd(a),
		newNoteCmd(a),
		newReportCmd(a),
		newHooksCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return exitStatus(NewRootCmd().ExecuteContext(ctx), os.Stderr)
}

// exitStatus maps a command error to a process exit code. Only the review
// gate exits 1; any other failure is internal.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return model.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(stderr, "warden: "+err.Error())
	return model.ExitInternal
}

// outputJSON prints v as indented JSON.
func (a *app) outputJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
