package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/workspace"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/errclass"
)

func TestInit_CreatesLayout(t *testing.T) {
	root := t.TempDir()

	ws, err := workspace.Init(root)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
	assert.Equal(t, filepath.Join(root, ".warden"), ws.StateDir)
	assert.Equal(t, workspace.FormatVersion, ws.FormatVersion)
	assert.NotEmpty(t, ws.WorkspaceID)

	for _, d := range []string{"ledger", "backups", "reviews", "sessions", "usage"} {
		assert.DirExists(t, ws.Path(d))
	}
	assert.FileExists(t, config.Path(ws.StateDir))

	content, err := os.ReadFile(ws.Path("format_version"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(content))

	cfg, err := config.Load(ws.StateDir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestInit_IsRepeatable(t *testing.T) {
	root := t.TempDir()
	first, err := workspace.Init(root)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Quality.BlockOnFailure = true
	require.NoError(t, config.Save(first.StateDir, cfg))

	second, err := workspace.Init(root)
	require.NoError(t, err)
	assert.Equal(t, first.WorkspaceID, second.WorkspaceID)

	loaded, err := config.Load(second.StateDir)
	require.NoError(t, err)
	assert.True(t, loaded.Quality.BlockOnFailure)
}

func TestDiscover_FromNestedDir(t *testing.T) {
	root := t.TempDir()
	_, err := workspace.Init(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))

	ws, err := workspace.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := workspace.Discover(t.TempDir())
	assert.ErrorIs(t, err, errclass.ErrNotInitialized)
}

func TestOpen_RejectsNewerFormat(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.Path("format_version"), []byte("99\n"), 0644))

	_, err = workspace.Open(ws.StateDir)
	assert.ErrorIs(t, err, errclass.ErrFormatUnsupported)
}

func TestResolve_PrefersHome(t *testing.T) {
	home := filepath.Join(t.TempDir(), "state")
	_, err := workspace.InitStateDir(home)
	require.NoError(t, err)

	ws, err := workspace.Resolve(home, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, home, ws.StateDir)
	assert.Empty(t, ws.Root)
}

func TestReadFormatVersion_MissingIsZero(t *testing.T) {
	v, err := workspace.ReadFormatVersion(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, v)
}
