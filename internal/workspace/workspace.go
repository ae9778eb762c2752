// Package workspace locates and initializes the warden state directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/uuidutil"
)

const (
	FormatVersion     = 1
	StateDirName      = ".warden"
	FormatVersionFile = "format_version"
	WorkspaceIDFile   = "workspace_id"

	// HomeEnv overrides discovery with an explicit state directory.
	HomeEnv = "WARDEN_HOME"
)

// Subdirectories of the state directory, one per owning component.
const (
	LedgerDir   = "ledger"
	BackupsDir  = "backups"
	ReviewsDir  = "reviews"
	SessionsDir = "sessions"
	UsageDir    = "usage"
)

// Workspace is an initialized state directory.
type Workspace struct {
	// Root is the project directory containing the state directory. It is
	// empty when the state directory came from WARDEN_HOME.
	Root          string
	StateDir      string
	FormatVersion int
	WorkspaceID   string
}

// Path joins elem onto the state directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.StateDir}, elem...)...)
}

// Init creates the state directory under root, writes the default config
// and stamps the format version. Re-running Init on an existing workspace
// keeps its config and id.
func Init(root string) (*Workspace, error) {
	stateDir := filepath.Join(root, StateDirName)
	if err := initStateDir(stateDir); err != nil {
		return nil, err
	}
	ws, err := Open(stateDir)
	if err != nil {
		return nil, err
	}
	ws.Root = root
	return ws, nil
}

// InitStateDir initializes an explicit state directory, as used with WARDEN_HOME.
func InitStateDir(stateDir string) (*Workspace, error) {
	if err := initStateDir(stateDir); err != nil {
		return nil, err
	}
	return Open(stateDir)
}

func initStateDir(stateDir string) error {
	for _, dir := range []string{
		stateDir,
		filepath.Join(stateDir, LedgerDir),
		filepath.Join(stateDir, BackupsDir),
		filepath.Join(stateDir, ReviewsDir),
		filepath.Join(stateDir, SessionsDir),
		filepath.Join(stateDir, UsageDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(config.Path(stateDir)); os.IsNotExist(err) {
		if err := config.Save(stateDir, config.Default()); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}

	versionPath := filepath.Join(stateDir, FormatVersionFile)
	if _, err := os.Stat(versionPath); os.IsNotExist(err) {
		data := []byte(strconv.Itoa(FormatVersion) + "\n")
		if err := fsutil.AtomicWrite(versionPath, data, 0644); err != nil {
			return fmt.Errorf("write format_version: %w", err)
		}
	}

	idPath := filepath.Join(stateDir, WorkspaceIDFile)
	if _, err := os.Stat(idPath); os.IsNotExist(err) {
		if err := fsutil.AtomicWrite(idPath, []byte(uuidutil.NewV7()+"\n"), 0644); err != nil {
			return fmt.Errorf("write workspace_id: %w", err)
		}
	}

	if err := fsutil.FsyncDir(stateDir); err != nil {
		return fmt.Errorf("fsync state dir: %w", err)
	}
	return nil
}

// Open reads an existing state directory.
func Open(stateDir string) (*Workspace, error) {
	info, err := os.Stat(stateDir)
	if err != nil || !info.IsDir() {
		return nil, errclass.ErrNotInitialized.WithMessagef("no state directory at %s", stateDir)
	}
	version, err := ReadFormatVersion(stateDir)
	if err != nil {
		return nil, err
	}
	if version > FormatVersion {
		return nil, errclass.ErrFormatUnsupported.WithMessagef(
			"format version %d > supported %d", version, FormatVersion)
	}
	id, _ := readTrimmed(filepath.Join(stateDir, WorkspaceIDFile))
	return &Workspace{StateDir: stateDir, FormatVersion: version, WorkspaceID: id}, nil
}

// Discover walks up from cwd to the nearest directory containing .warden/.
func Discover(cwd string) (*Workspace, error) {
	path := cwd
	for {
		stateDir := filepath.Join(path, StateDirName)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			ws, err := Open(stateDir)
			if err != nil {
				return nil, err
			}
			ws.Root = path
			return ws, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrNotInitialized.WithMessage("no warden workspace found (no .warden/ in parent directories); run 'warden init'")
		}
		path = parent
	}
}

// Resolve honors WARDEN_HOME when set (home is its value) and otherwise
// discovers from cwd.
func Resolve(home, cwd string) (*Workspace, error) {
	if home != "" {
		return Open(home)
	}
	return Discover(cwd)
}

// ReadFormatVersion returns the version stamped in stateDir. A missing file
// reads as version 0, a workspace that predates stamping.
func ReadFormatVersion(stateDir string) (int, error) {
	s, err := readTrimmed(filepath.Join(stateDir, FormatVersionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errclass.ErrFormatUnsupported.WithMessagef("invalid format_version %q", s)
	}
	return v, nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
