package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/backup"
	"github.com/jvs-project/warden/internal/doctor"
	"github.com/jvs-project/warden/internal/review"
	"github.com/jvs-project/warden/internal/workspace"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/fsutil"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	return ws.StateDir
}

func categories(r *doctor.Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	stateDir := setupWorkspace(t)

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_MissingFormatVersion(t *testing.T) {
	stateDir := setupWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(stateDir, workspace.FormatVersionFile)))

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "format")
}

func TestDoctor_Check_NewerFormatVersion(t *testing.T) {
	stateDir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, workspace.FormatVersionFile), []byte("7\n"), 0644))

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
}

func TestDoctor_Check_InvalidConfig(t *testing.T) {
	stateDir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(config.Path(stateDir), []byte("quality:\n  review-threshold: 250\n"), 0644))

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Contains(t, categories(result), "config")
}

func TestDoctor_Check_ReadablePrivateDir(t *testing.T) {
	stateDir := setupWorkspace(t)
	private := filepath.Join(stateDir, workspace.LedgerDir, "private")
	require.NoError(t, os.Mkdir(private, 0755))

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "ledger")
}

func TestDoctor_Check_OrphanTmp(t *testing.T) {
	stateDir := setupWorkspace(t)
	tmp := filepath.Join(stateDir, workspace.ReviewsDir, fsutil.TempPrefix+"123")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0644))

	result, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "tmp", result.Findings[0].Category)
	assert.Equal(t, tmp, result.Findings[0].Path)
}

func TestDoctor_Check_StaleReview(t *testing.T) {
	stateDir := setupWorkspace(t)
	raisedAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	gate := review.NewGate(filepath.Join(stateDir, workspace.ReviewsDir), time.Second,
		review.WithClock(func() time.Time { return raisedAt }))
	_, err := gate.Raise(context.Background(), "a.go", "alice", "done")
	require.NoError(t, err)

	doc := doctor.NewDoctor(stateDir).WithClock(func() time.Time { return raisedAt.Add(8 * 24 * time.Hour) })
	result, err := doc.Check(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, doctor.SeverityWarning, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "a.go")
}

func TestDoctor_Check_StrictDetectsCorruptSnapshot(t *testing.T) {
	stateDir := setupWorkspace(t)
	src := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(src, []byte("package a"), 0644))

	mgr := backup.NewManager(filepath.Join(stateDir, workspace.BackupsDir), backup.DefaultRetention)
	snap, err := mgr.Snapshot(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snap.SnapshotPath, []byte("tampered"), 0644))

	lenient, err := doctor.NewDoctor(stateDir).Check(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, lenient.Findings)

	strict, err := doctor.NewDoctor(stateDir).Check(context.Background(), true)
	require.NoError(t, err)
	assert.Contains(t, categories(strict), "backup")
}
