// Package backup takes pre-change snapshots of files touched by modifying
// tools and expires them after a retention period.
//
// Layout under the backup root:
//
//	<sha256(abs path)[:16]>/<UTC timestamp>-<content hash[:8]>.snap
//	<sha256(abs path)[:16]>/<UTC timestamp>-<content hash[:8]>.json
//
// The .json sidecar is the BackupSnapshot descriptor. The manager owns the
// directory exclusively; nothing else writes into it.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/logging"
	"github.com/jvs-project/warden/pkg/model"
	"github.com/jvs-project/warden/pkg/pathutil"
)

const (
	snapExt       = ".snap"
	descriptorExt = ".json"
	stampLayout   = "20060102T150405.000000000Z"
)

// DefaultRetention is used when no retention is configured.
const DefaultRetention = 7 * 24 * time.Hour

// Manager creates, lists, restores and expires snapshots.
type Manager struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	log       *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for sweep and restore reporting.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string, retention time.Duration, opts ...Option) *Manager {
	if retention < 0 {
		retention = DefaultRetention
	}
	m := &Manager{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the backup root.
func (m *Manager) Dir() string { return m.dir }

// Snapshot copies the current on-disk bytes of path into the store. The
// source file is only read, never modified.
func (m *Manager) Snapshot(path string) (*model.BackupSnapshot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "stat source")
	}
	if !info.Mode().IsRegular() {
		return nil, errclass.ErrIO.WithMessagef("not a regular file: %s", abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read source")
	}

	hash := contentHash(data)
	created := m.now().UTC()
	keyDir := filepath.Join(m.dir, pathKey(abs))
	if err := os.MkdirAll(keyDir, 0755); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "create snapshot dir")
	}

	base := created.Format(stampLayout) + "-" + string(hash)[:8]
	snap := &model.BackupSnapshot{
		SourcePath:   abs,
		SnapshotPath: filepath.Join(keyDir, base+snapExt),
		ContentHash:  hash,
		Size:         int64(len(data)),
		CreatedAt:    created,
		ExpiresAt:    created.Add(m.retention),
	}

	if err := fsutil.AtomicWrite(snap.SnapshotPath, data, info.Mode().Perm()|0600); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "write snapshot")
	}
	if err := writeDescriptor(snap); err != nil {
		os.Remove(snap.SnapshotPath)
		return nil, err
	}

	m.log.Debug("snapshot taken", map[string]any{"source": abs, "snapshot": snap.SnapshotPath, "bytes": snap.Size})
	return snap, nil
}

// List returns snapshots for sourcePath, or all snapshots when sourcePath is
// empty, newest first.
func (m *Manager) List(sourcePath string) ([]*model.BackupSnapshot, error) {
	var keyDirs []string
	if sourcePath != "" {
		abs, err := filepath.Abs(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", sourcePath, err)
		}
		keyDirs = []string{filepath.Join(m.dir, pathKey(abs))}
	} else {
		entries, err := os.ReadDir(m.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errclass.ErrIO.Wrap(err, "read backup dir")
		}
		for _, e := range entries {
			if e.IsDir() {
				keyDirs = append(keyDirs, filepath.Join(m.dir, e.Name()))
			}
		}
	}

	var snaps []*model.BackupSnapshot
	for _, dir := range keyDirs {
		found, err := m.scanKeyDir(dir)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, found...)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// Sweep deletes every snapshot older than the retention period. A snapshot
// whose age equals the retention period exactly is kept. Failures are
// collected and logged, never returned as fatal.
func (m *Manager) Sweep() (*model.SweepResult, error) {
	result := &model.SweepResult{}
	snaps, err := m.List("")
	if err != nil {
		return result, err
	}

	now := m.now()
	for _, s := range snaps {
		result.Examined++
		if now.Sub(s.CreatedAt) <= m.retention {
			continue
		}
		if err := removeSnapshot(s); err != nil {
			m.log.ErrorErr("sweep: delete snapshot", err, map[string]any{"snapshot": s.SnapshotPath})
			result.Failed = append(result.Failed, s.SnapshotPath)
			continue
		}
		result.Deleted = append(result.Deleted, s.SnapshotPath)
	}

	m.pruneEmptyDirs()
	if len(result.Deleted) > 0 {
		m.log.Info("sweep complete", map[string]any{"examined": result.Examined, "deleted": len(result.Deleted)})
	}
	return result, nil
}

// Restore writes a snapshot's content back to its source path after
// verifying the content hash. The current source, if any, is snapshotted
// first so a restore can itself be undone.
func (m *Manager) Restore(snapshotPath string) (*model.BackupSnapshot, error) {
	abs, err := filepath.Abs(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", snapshotPath, err)
	}
	if err := pathutil.ValidatePathSafety(m.dir, abs); err != nil {
		return nil, err
	}

	snap, err := loadDescriptor(descriptorPath(abs))
	if err != nil {
		return nil, err
	}
	snap.SnapshotPath = abs
	data, err := readVerified(snap)
	if err != nil {
		return nil, err
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(snap.SourcePath); err == nil {
		perm = info.Mode().Perm()
		if _, err := m.Snapshot(snap.SourcePath); err != nil {
			return nil, fmt.Errorf("snapshot current source before restore: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(snap.SourcePath), 0755); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "create source dir")
	}
	if err := fsutil.AtomicWrite(snap.SourcePath, data, perm); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "restore source")
	}

	m.log.Info("snapshot restored", map[string]any{"source": snap.SourcePath, "snapshot": abs})
	return snap, nil
}

// Verify checks that the stored payload still matches its recorded hash.
func (m *Manager) Verify(snap *model.BackupSnapshot) error {
	_, err := readVerified(snap)
	return err
}

func readVerified(snap *model.BackupSnapshot) ([]byte, error) {
	data, err := os.ReadFile(snap.SnapshotPath)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read snapshot")
	}
	if snap.ContentHash == "" {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("%s: no descriptor", snap.SnapshotPath)
	}
	if got := contentHash(data); got != snap.ContentHash {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("%s: hash %s, descriptor says %s", snap.SnapshotPath, got, snap.ContentHash)
	}
	return data, nil
}

func (m *Manager) scanKeyDir(dir string) ([]*model.BackupSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "read snapshot dir")
	}

	var snaps []*model.BackupSnapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapExt) {
			continue
		}
		snapPath := filepath.Join(dir, e.Name())
		snap, err := loadDescriptor(descriptorPath(snapPath))
		if err != nil {
			// Orphaned payload: fall back to the file's mtime so it still ages out.
			info, statErr := e.Info()
			if statErr != nil {
				continue
			}
			snap = &model.BackupSnapshot{
				SnapshotPath: snapPath,
				Size:         info.Size(),
				CreatedAt:    info.ModTime().UTC(),
				ExpiresAt:    info.ModTime().UTC().Add(m.retention),
			}
		}
		snap.SnapshotPath = snapPath
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (m *Manager) pruneEmptyDirs() {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.dir, e.Name())
		if children, err := os.ReadDir(dir); err == nil && len(children) == 0 {
			os.Remove(dir)
		}
	}
}

func pathKey(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])[:16]
}

func contentHash(data []byte) model.HashValue {
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:]))
}

func descriptorPath(snapPath string) string {
	return strings.TrimSuffix(snapPath, snapExt) + descriptorExt
}

func writeDescriptor(snap *model.BackupSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	if err := fsutil.AtomicWrite(descriptorPath(snap.SnapshotPath), data, 0644); err != nil {
		return errclass.ErrIO.Wrap(err, "write descriptor")
	}
	return nil
}

func loadDescriptor(path string) (*model.BackupSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read descriptor")
	}
	var snap model.BackupSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errclass.ErrSnapshotCorrupt.Wrap(err, path)
	}
	return &snap, nil
}

func removeSnapshot(s *model.BackupSnapshot) error {
	if err := os.Remove(s.SnapshotPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(descriptorPath(s.SnapshotPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
