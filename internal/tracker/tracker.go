// Package tracker records tool invocations and snapshots files that
// modifying tools are about to change.
package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jvs-project/warden/internal/backup"
	"github.com/jvs-project/warden/internal/ledger"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/logging"
	"github.com/jvs-project/warden/pkg/model"
	"github.com/jvs-project/warden/pkg/pathutil"
)

// Options configures a Tracker.
type Options struct {
	// Backups is nil when snapshots are disabled.
	Backups        *backup.Manager
	Track          []string
	Exclude        []string
	ModifyingTools []string
	LockTimeout    time.Duration
	Now            func() time.Time
	Logger         *logging.Logger
}

// OptionsFromConfig derives tracker options from the backup config block.
func OptionsFromConfig(cfg *config.Config, backups *backup.Manager) Options {
	opts := Options{
		Track:          cfg.Backup.Track,
		Exclude:        cfg.Backup.Exclude,
		ModifyingTools: cfg.Backup.ModifyingTools,
		LockTimeout:    cfg.LockTimeout(),
	}
	if cfg.Backup.Enabled {
		opts.Backups = backups
	}
	return opts
}

// Tracker appends ToolInvocationRecords to the usage log.
type Tracker struct {
	usage     *UsageLog
	ledger    *ledger.Ledger
	backups   *backup.Manager
	track     []string
	exclude   []string
	modifying map[string]bool
	now       func() time.Time
	log       *logging.Logger
}

// New creates a tracker writing usage records under usageDir and error
// entries to l.
func New(usageDir string, l *ledger.Ledger, opts Options) *Tracker {
	t := &Tracker{
		usage:     NewUsageLog(usageDir, opts.LockTimeout),
		ledger:    l,
		backups:   opts.Backups,
		track:     opts.Track,
		exclude:   opts.Exclude,
		modifying: make(map[string]bool, len(opts.ModifyingTools)),
		now:       opts.Now,
		log:       opts.Logger,
	}
	for _, name := range opts.ModifyingTools {
		t.modifying[name] = true
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.log == nil {
		t.log = logging.Discard()
	}
	return t
}

// Usage returns the underlying usage log.
func (t *Tracker) Usage() *UsageLog { return t.usage }

// IsModifying reports whether toolName is configured as a file-modifying tool.
func (t *Tracker) IsModifying(toolName string) bool {
	return t.modifying[toolName]
}

// Trackable reports whether path is covered by a track glob and no exclude glob.
func (t *Tracker) Trackable(path string) bool {
	if path == "" {
		return false
	}
	return pathutil.MatchAny(t.track, path) && !pathutil.MatchAny(t.exclude, path)
}

// RecordToolUse records one tool invocation. When the tool modifies a
// trackable file, the file's current on-disk bytes are snapshotted first
// through batch, which coalesces repeated requests within one event. A
// failed snapshot is recorded as an error entry and never fails the call;
// only a failure to write the usage record is returned.
func (t *Tracker) RecordToolUse(ctx context.Context, batch *backup.Batch, actorID, toolName, targetPath string) (model.ToolInvocationRecord, error) {
	rec := model.ToolInvocationRecord{
		ActorID:    actorID,
		ToolName:   toolName,
		TargetPath: targetPath,
		Timestamp:  t.now().UTC(),
		Outcome:    model.OutcomeRecorded,
	}

	if targetPath != "" && t.IsModifying(toolName) {
		rec.Outcome = t.snapshot(ctx, batch, rec)
	}

	if err := t.usage.Append(ctx, rec); err != nil {
		return rec, fmt.Errorf("record tool use: %w", err)
	}
	return rec, nil
}

func (t *Tracker) snapshot(ctx context.Context, batch *backup.Batch, rec model.ToolInvocationRecord) string {
	if t.backups == nil || !t.Trackable(rec.TargetPath) {
		return model.OutcomeUntracked
	}
	if batch == nil {
		batch = t.backups.NewBatch()
	}

	snap, taken, err := batch.Snapshot(rec.TargetPath)
	if err != nil {
		t.log.ErrorErr("snapshot before tool use", err, map[string]any{
			"tool": rec.ToolName, "target": rec.TargetPath,
		})
		entry := model.LedgerEntry{
			Time:    rec.Timestamp,
			Kind:    model.EntryError,
			ActorID: rec.ActorID,
			Fields: map[string]string{
				"component": "tracker",
				"tool":      rec.ToolName,
				"target":    rec.TargetPath,
				"error":     err.Error(),
			},
		}
		if lerr := t.ledger.Append(ctx, entry); lerr != nil {
			t.log.ErrorErr("append snapshot failure", lerr)
		}
		return model.OutcomeSnapshotFailed
	}
	if taken {
		t.log.Debug("snapshot taken", map[string]any{"target": rec.TargetPath, "snapshot": snap.SnapshotPath})
	}
	return model.OutcomeSnapshot
}

// ModifiedPaths returns the distinct targets of modifying tool invocations by
// actorID recorded at or after since, sorted. An empty actorID matches all
// actors.
func (t *Tracker) ModifiedPaths(actorID string, since time.Time) ([]string, error) {
	seen := make(map[string]bool)
	now := t.now().UTC()
	for day := dayStart(since.UTC()); !day.After(now); day = day.AddDate(0, 0, 1) {
		records, err := t.usage.Read(day.Format(model.DateLayout))
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.TargetPath == "" || r.Timestamp.Before(since) {
				continue
			}
			if actorID != "" && r.ActorID != actorID {
				continue
			}
			if !t.IsModifying(r.ToolName) {
				continue
			}
			seen[filepath.Clean(r.TargetPath)] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
