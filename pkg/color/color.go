// Package color provides terminal color output for warden status text.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"io"
	"os"

	"github.com/jvs-project/warden/pkg/model"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Cyan    = "\033[36m"
)

// Painter wraps text in color codes when enabled. The zero value is
// disabled.
type Painter struct {
	enabled bool
}

// New returns a painter with color explicitly on or off.
func New(enabled bool) Painter {
	return Painter{enabled: enabled}
}

// Detect enables color only when out is a terminal, NO_COLOR is unset,
// TERM is not "dumb" and noColorFlag is false.
func Detect(out io.Writer, noColorFlag bool, getenv func(string) string) Painter {
	if noColorFlag {
		return Painter{}
	}
	if _, set := os.LookupEnv("NO_COLOR"); set || getenv("NO_COLOR") != "" {
		return Painter{}
	}
	if getenv("TERM") == "dumb" {
		return Painter{}
	}
	f, ok := out.(*os.File)
	if !ok {
		return Painter{}
	}
	info, err := f.Stat()
	if err != nil {
		return Painter{}
	}
	return Painter{enabled: info.Mode()&os.ModeCharDevice != 0}
}

// Enabled reports whether color codes are emitted.
func (p Painter) Enabled() bool { return p.enabled }

func (p Painter) wrap(code, s string) string {
	if !p.enabled {
		return s
	}
	return code + s + Reset
}

// Success formats s in green.
func (p Painter) Success(s string) string { return p.wrap(Green, s) }

// Error formats s in red.
func (p Painter) Error(s string) string { return p.wrap(Red, s) }

// Warning formats s in yellow.
func (p Painter) Warning(s string) string { return p.wrap(Yellow, s) }

// Info formats s in cyan.
func (p Painter) Info(s string) string { return p.wrap(Cyan, s) }

// Dim formats s dimmed.
func (p Painter) Dim(s string) string { return p.wrap(DimCode, s) }

// Header formats s in bold.
func (p Painter) Header(s string) string { return p.wrap(Bold, s) }

// Severity colors s by gate severity.
func (p Painter) Severity(sev model.Severity, s string) string {
	switch sev {
	case model.SeverityBlock:
		return p.Error(s)
	case model.SeverityWarn:
		return p.Warning(s)
	case model.SeverityNotify:
		return p.Info(s)
	}
	return s
}
