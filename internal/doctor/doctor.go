// Package doctor checks a warden state directory for problems an operator
// should know about.
package doctor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jvs-project/warden/internal/backup"
	"github.com/jvs-project/warden/internal/review"
	"github.com/jvs-project/warden/internal/workspace"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/fsutil"
)

// Finding severities.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityCritical {
		r.Healthy = false
	}
}

// Doctor performs state directory health checks.
type Doctor struct {
	stateDir string
	now      func() time.Time
}

// NewDoctor creates a doctor for stateDir.
func NewDoctor(stateDir string) *Doctor {
	return &Doctor{stateDir: stateDir, now: time.Now}
}

// WithClock overrides the time source used to age pending reviews.
func (d *Doctor) WithClock(now func() time.Time) *Doctor {
	d.now = now
	return d
}

// Check runs all diagnostic checks. strict additionally verifies every
// backup snapshot against its recorded hash.
func (d *Doctor) Check(ctx context.Context, strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	d.checkFormatVersion(result)
	cfg := d.checkConfig(result)
	d.checkPrivateDir(result)
	d.checkOrphanTmp(result)
	d.checkStaleReviews(ctx, cfg, result)
	if strict {
		d.checkSnapshots(cfg, result)
	}
	return result, nil
}

func (d *Doctor) checkFormatVersion(result *Result) {
	versionPath := filepath.Join(d.stateDir, workspace.FormatVersionFile)
	if _, err := os.Stat(versionPath); err != nil {
		result.add(Finding{
			Category:    "format",
			Description: "format_version file missing or unreadable",
			Severity:    SeverityCritical,
			Path:        versionPath,
		})
		return
	}

	version, err := workspace.ReadFormatVersion(d.stateDir)
	if err != nil {
		result.add(Finding{
			Category:    "format",
			Description: err.Error(),
			Severity:    SeverityCritical,
			Path:        versionPath,
		})
		return
	}
	if version > workspace.FormatVersion {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format version %d > supported %d", version, workspace.FormatVersion),
			Severity:    SeverityCritical,
		})
	}
}

func (d *Doctor) checkConfig(result *Result) *config.Config {
	cfg, err := config.Load(d.stateDir)
	if err != nil {
		result.add(Finding{
			Category:    "config",
			Description: fmt.Sprintf("config invalid, defaults in use: %v", err),
			Severity:    SeverityError,
			Path:        config.Path(d.stateDir),
		})
	}
	return cfg
}

func (d *Doctor) checkPrivateDir(result *Result) {
	dir := filepath.Join(d.stateDir, workspace.LedgerDir, "private")
	info, err := os.Stat(dir)
	if err != nil {
		return // no private entries yet
	}
	if perm := info.Mode().Perm(); perm&0444 != 0 {
		result.add(Finding{
			Category:    "ledger",
			Description: fmt.Sprintf("private ledger directory is readable (mode %04o, want 0333)", perm),
			Severity:    SeverityCritical,
			Path:        dir,
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	filepath.WalkDir(d.stateDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// The private directory is not listable by design.
			return nil
		}
		if strings.HasPrefix(entry.Name(), fsutil.TempPrefix) {
			result.add(Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", entry.Name()),
				Severity:    SeverityInfo,
				Path:        path,
			})
		}
		return nil
	})
}

func (d *Doctor) checkStaleReviews(ctx context.Context, cfg *config.Config, result *Result) {
	gate := review.NewGate(filepath.Join(d.stateDir, workspace.ReviewsDir), cfg.LockTimeout())
	pending, err := gate.ListPending(ctx)
	if err != nil {
		result.add(Finding{
			Category:    "review",
			Description: fmt.Sprintf("cannot read pending reviews: %v", err),
			Severity:    SeverityError,
		})
		return
	}

	maxAge := cfg.Retention()
	if maxAge <= 0 {
		maxAge = backup.DefaultRetention
	}
	for _, p := range review.Stale(pending, d.now(), maxAge) {
		result.add(Finding{
			Category: "review",
			Description: fmt.Sprintf("unit %q pending review since %s (raised by %s)",
				p.UnitID, p.RaisedAt.Format(time.RFC3339), p.RaisedBy),
			Severity: SeverityWarning,
		})
	}
}

func (d *Doctor) checkSnapshots(cfg *config.Config, result *Result) {
	mgr := backup.NewManager(filepath.Join(d.stateDir, workspace.BackupsDir), cfg.Retention())
	snaps, err := mgr.List("")
	if err != nil {
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("cannot list snapshots: %v", err),
			Severity:    SeverityError,
		})
		return
	}
	for _, s := range snaps {
		if err := mgr.Verify(s); err != nil {
			result.add(Finding{
				Category:    "backup",
				Description: err.Error(),
				Severity:    SeverityError,
				Path:        s.SnapshotPath,
			})
		}
	}
}
