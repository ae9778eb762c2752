// Package review maintains the pending-review queue and turns it into a
// gate verdict for completion claims.
//
// The queue lives in a single JSONL file, one line per unit. Raise appends
// under an exclusive lock on a sidecar lock file. Clear rewrites the whole
// file and swaps it in by rename under the same lock, which is why the lock
// is not taken on the queue file itself.
package review

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/model"
	"github.com/jvs-project/warden/pkg/pathutil"
)

const (
	pendingFile = "pending.jsonl"
	lockFile    = "pending.lock"
)

// PolicyKey names the configuration option that turns warnings into blocks.
const PolicyKey = "quality.block-on-failure"

// Gate owns the pending-review store.
type Gate struct {
	dir         string
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source used for RaisedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate whose store lives in dir.
func NewGate(dir string, lockTimeout time.Duration, opts ...Option) *Gate {
	g := &Gate{dir: dir, lockTimeout: lockTimeout, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path returns the pending-review file.
func (g *Gate) Path() string { return filepath.Join(g.dir, pendingFile) }

func (g *Gate) lockPath() string { return filepath.Join(g.dir, lockFile) }

// Raise adds unitID to the queue. It returns false when the unit is already
// pending; a unit appears at most once.
func (g *Gate) Raise(ctx context.Context, unitID, raisedBy, reason string) (bool, error) {
	if err := pathutil.ValidateUnitID(unitID); err != nil {
		return false, err
	}

	var added bool
	err := g.withLock(ctx, func() error {
		pending, err := g.read()
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.UnitID == unitID {
				return nil
			}
		}

		line, err := json.Marshal(model.PendingReviewEntry{
			UnitID:   unitID,
			RaisedBy: raisedBy,
			RaisedAt: g.now().UTC(),
			Reason:   reason,
		})
		if err != nil {
			return fmt.Errorf("marshal pending entry: %w", err)
		}

		f, err := os.OpenFile(g.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errclass.ErrIO.Wrap(err, "open pending reviews")
		}
		defer f.Close()
		if _, err := f.Write(append(line, '\n')); err != nil {
			return errclass.ErrIO.Wrap(err, "append pending review")
		}
		if err := f.Sync(); err != nil {
			return errclass.ErrIO.Wrap(err, "sync pending reviews")
		}
		added = true
		return nil
	})
	return added, err
}

// Clear removes unitID from the queue. It returns false when the unit was
// not pending.
func (g *Gate) Clear(ctx context.Context, unitID string) (bool, error) {
	var removed bool
	err := g.withLock(ctx, func() error {
		pending, err := g.read()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		for _, p := range pending {
			if p.UnitID == unitID {
				removed = true
				continue
			}
			line, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal pending entry: %w", err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		if !removed {
			return nil
		}
		if err := fsutil.AtomicWrite(g.Path(), buf.Bytes(), 0644); err != nil {
			return errclass.ErrIO.Wrap(err, "rewrite pending reviews")
		}
		return nil
	})
	return removed, err
}

// ListPending returns the pending units in the order they were raised.
func (g *Gate) ListPending(ctx context.Context) ([]model.PendingReviewEntry, error) {
	var pending []model.PendingReviewEntry
	err := g.withLock(ctx, func() error {
		var err error
		pending, err = g.read()
		return err
	})
	return pending, err
}

func (g *Gate) withLock(ctx context.Context, fn func() error) error {
	return fsutil.Retry(ctx, 50*time.Millisecond, func() error {
		return fsutil.WithLock(ctx, g.lockPath(), g.lockTimeout, fn)
	})
}

// read parses the store. A missing file is an empty queue; malformed lines
// are skipped and duplicates collapse to their first occurrence.
func (g *Gate) read() ([]model.PendingReviewEntry, error) {
	f, err := os.Open(g.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "open pending reviews")
	}
	defer f.Close()

	seen := make(map[string]bool)
	var pending []model.PendingReviewEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e model.PendingReviewEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil || e.UnitID == "" {
			continue
		}
		if seen[e.UnitID] {
			continue
		}
		seen[e.UnitID] = true
		pending = append(pending, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "scan pending reviews")
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].RaisedAt.Before(pending[j].RaisedAt)
	})
	return pending, nil
}

// Verdict is the gate's decision for one response event.
type Verdict struct {
	Severity model.Severity
	ExitCode int
	Message  string
}

// Evaluate decides how loudly to surface the pending queue. Nothing pending
// passes. Pending units without a completion claim are a notice. A
// completion claim with pending units is a warning, or a block when the
// policy says so.
func Evaluate(pending []model.PendingReviewEntry, completion bool, policy model.ReviewThresholdPolicy) Verdict {
	if len(pending) == 0 {
		return Verdict{Severity: model.SeverityNone, ExitCode: model.ExitOK}
	}

	units := UnitIDs(pending)
	list := strings.Join(units, ", ")

	if !completion {
		return Verdict{
			Severity: model.SeverityNotify,
			ExitCode: model.ExitOK,
			Message:  fmt.Sprintf("%d unit(s) pending review: %s", len(units), list),
		}
	}
	if policy.BlockOnFailure {
		return Verdict{
			Severity: model.SeverityBlock,
			ExitCode: model.ExitBlocked,
			Message: fmt.Sprintf("blocked: review required before completion for %s (policy %s=true)",
				list, PolicyKey),
		}
	}
	return Verdict{
		Severity: model.SeverityWarn,
		ExitCode: model.ExitOK,
		Message: fmt.Sprintf("warning: review required before completion for %s (policy %s=false)",
			list, PolicyKey),
	}
}

// UnitIDs returns the unit identifiers of pending in order.
func UnitIDs(pending []model.PendingReviewEntry) []string {
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.UnitID
	}
	return ids
}

// Stale returns the entries raised more than maxAge before now.
func Stale(pending []model.PendingReviewEntry, now time.Time, maxAge time.Duration) []model.PendingReviewEntry {
	var stale []model.PendingReviewEntry
	for _, p := range pending {
		if now.Sub(p.RaisedAt) > maxAge {
			stale = append(stale, p)
		}
	}
	return stale
}
