package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/backup"
	"github.com/jvs-project/warden/pkg/errclass"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T, retention time.Duration) (*backup.Manager, *fakeClock, string) {
	t.Helper()
	root := t.TempDir()
	clock := &fakeClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	mgr := backup.NewManager(filepath.Join(root, "backups"), retention, backup.WithClock(clock.Now))
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0755))
	return mgr, clock, work
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSnapshot_ContentMatchesSourceAtCallTime(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)
	src := filepath.Join(work, "main.go")
	writeFile(t, src, "package main\n")
	before, err := os.Stat(src)
	require.NoError(t, err)

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)

	got, err := os.ReadFile(snap.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(got))
	assert.Equal(t, int64(len("package main\n")), snap.Size)
	assert.NotEmpty(t, snap.ContentHash)

	// The source is untouched.
	after, err := os.Stat(src)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Mode(), after.Mode())
	content, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))

	// Later edits do not leak into the stored copy.
	writeFile(t, src, "package changed\n")
	got, err = os.ReadFile(snap.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(got))
}

func TestSnapshot_ExpiryFromRetention(t *testing.T) {
	mgr, clock, work := setup(t, 48*time.Hour)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "x")

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)
	assert.Equal(t, clock.t, snap.CreatedAt)
	assert.Equal(t, clock.t.Add(48*time.Hour), snap.ExpiresAt)
}

func TestSnapshot_MissingSource(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)

	_, err := mgr.Snapshot(filepath.Join(work, "gone.go"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrIO)
}

func TestSnapshot_RejectsDirectory(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)

	_, err := mgr.Snapshot(work)
	assert.ErrorIs(t, err, errclass.ErrIO)
}

func TestBatch_CoalescesSamePath(t *testing.T) {
	mgr, clock, work := setup(t, backup.DefaultRetention)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "v1")

	batch := mgr.NewBatch()
	first, took, err := batch.Snapshot(src)
	require.NoError(t, err)
	assert.True(t, took)

	clock.Advance(time.Second)
	second, took, err := batch.Snapshot(filepath.Join(work, ".", "a.go"))
	require.NoError(t, err)
	assert.False(t, took)
	assert.Equal(t, first.SnapshotPath, second.SnapshotPath)
	assert.Equal(t, 1, batch.Len())

	all, err := mgr.List(src)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// A new batch (a new event) snapshots again.
	_, took, err = mgr.NewBatch().Snapshot(src)
	require.NoError(t, err)
	assert.True(t, took)
	all, err = mgr.List(src)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestList_NewestFirst(t *testing.T) {
	mgr, clock, work := setup(t, backup.DefaultRetention)
	a := filepath.Join(work, "a.go")
	b := filepath.Join(work, "b.go")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	_, err := mgr.Snapshot(a)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = mgr.Snapshot(b)
	require.NoError(t, err)

	all, err := mgr.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b, filepath.Clean(all[0].SourcePath))

	onlyA, err := mgr.List(a)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
}

func TestList_EmptyStore(t *testing.T) {
	mgr, _, _ := setup(t, backup.DefaultRetention)
	all, err := mgr.List("")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSweep_RetentionBoundary(t *testing.T) {
	retention := 7 * 24 * time.Hour
	mgr, clock, work := setup(t, retention)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "x")

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)

	// Younger than retention: kept.
	clock.Advance(retention - time.Hour)
	res, err := mgr.Sweep()
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)

	// Exactly at retention: kept.
	clock.Advance(time.Hour)
	res, err = mgr.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examined)
	assert.Empty(t, res.Deleted)
	assert.FileExists(t, snap.SnapshotPath)

	// Just past retention: deleted with its descriptor.
	clock.Advance(time.Nanosecond)
	res, err = mgr.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []string{snap.SnapshotPath}, res.Deleted)
	assert.NoFileExists(t, snap.SnapshotPath)

	all, err := mgr.List("")
	require.NoError(t, err)
	assert.Empty(t, all)

	// The source is never touched by the sweep.
	assert.FileExists(t, src)
}

func TestSweep_OnlyExpiredDeleted(t *testing.T) {
	mgr, clock, work := setup(t, 24*time.Hour)
	oldSrc := filepath.Join(work, "old.go")
	newSrc := filepath.Join(work, "new.go")
	writeFile(t, oldSrc, "old")
	writeFile(t, newSrc, "new")

	_, err := mgr.Snapshot(oldSrc)
	require.NoError(t, err)
	clock.Advance(20 * time.Hour)
	fresh, err := mgr.Snapshot(newSrc)
	require.NoError(t, err)
	clock.Advance(5 * time.Hour)

	res, err := mgr.Sweep()
	require.NoError(t, err)
	assert.Len(t, res.Deleted, 1)

	left, err := mgr.List("")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.SnapshotPath, left[0].SnapshotPath)
}

func TestRestore_RoundTrip(t *testing.T) {
	mgr, clock, work := setup(t, backup.DefaultRetention)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "original")

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)

	writeFile(t, src, "clobbered by tool")
	clock.Advance(time.Second)

	restored, err := mgr.Restore(snap.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, snap.ContentHash, restored.ContentHash)

	content, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	// The clobbered version was kept so the restore can be undone.
	all, err := mgr.List(src)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRestore_DetectsCorruption(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "original")

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snap.SnapshotPath, []byte("tampered"), 0644))

	_, err = mgr.Restore(snap.SnapshotPath)
	assert.ErrorIs(t, err, errclass.ErrSnapshotCorrupt)
}

func TestRestore_RejectsPathOutsideStore(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)
	outside := filepath.Join(work, "x.snap")
	writeFile(t, outside, "x")

	_, err := mgr.Restore(outside)
	assert.ErrorIs(t, err, errclass.ErrPathEscape)
}

func TestVerify(t *testing.T) {
	mgr, _, work := setup(t, backup.DefaultRetention)
	src := filepath.Join(work, "a.go")
	writeFile(t, src, "original")

	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)
	assert.NoError(t, mgr.Verify(snap))

	require.NoError(t, os.WriteFile(snap.SnapshotPath, []byte("bitrot"), 0644))
	assert.ErrorIs(t, mgr.Verify(snap), errclass.ErrSnapshotCorrupt)
}
