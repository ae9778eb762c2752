package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/model"
)

const (
	publicDirName  = "public"
	privateDirName = "private"

	privateDirPerm  os.FileMode = 0333
	privateFilePerm os.FileMode = 0222
	publicFilePerm  os.FileMode = 0644
)

// Options configures a Ledger.
type Options struct {
	LockTimeout  time.Duration
	RetryBackoff time.Duration
}

// Ledger appends entries to the per-day public and private files under dir.
type Ledger struct {
	dir  string
	opts Options
	mu   sync.Mutex
}

// New creates a Ledger rooted at dir.
func New(dir string, opts Options) *Ledger {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = fsutil.DefaultLockTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &Ledger{dir: dir, opts: opts}
}

// Dir returns the ledger root.
func (l *Ledger) Dir() string { return l.dir }

// PublicPath returns the public file for date (YYYY-MM-DD).
func (l *Ledger) PublicPath(date string) string {
	return filepath.Join(l.dir, publicDirName, date+".log")
}

// PrivateDir returns the write-only private directory.
func (l *Ledger) PrivateDir() string {
	return filepath.Join(l.dir, privateDirName)
}

// PrivatePath returns the private file for date (YYYY-MM-DD).
func (l *Ledger) PrivatePath(date string) string {
	return filepath.Join(l.PrivateDir(), date+".log")
}

// Append writes one entry. Private entries go to the private channel only,
// followed by a content-free stub in the public channel.
func (l *Ledger) Append(ctx context.Context, entry model.LedgerEntry) error {
	if !entry.Kind.Valid() {
		return fmt.Errorf("append ledger: unknown entry kind %q", entry.Kind)
	}
	if entry.ActorID == "" {
		return fmt.Errorf("append ledger: actor id is empty")
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.Time = entry.Time.UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	date := entry.Date()

	if entry.Kind != model.EntryPrivate {
		return l.appendBlock(ctx, l.PublicPath(date), publicFilePerm, FormatEntry(entry))
	}

	if err := l.ensurePrivateDir(); err != nil {
		return err
	}
	if err := l.appendBlock(ctx, l.PrivatePath(date), privateFilePerm, FormatEntry(entry)); err != nil {
		return fmt.Errorf("append private entry: %w", err)
	}

	stub := model.LedgerEntry{
		Time:    entry.Time,
		Kind:    model.EntryPrivate,
		ActorID: entry.ActorID,
		Fields:  map[string]string{"note": StubNote(entry.ActorID)},
	}
	if err := l.appendBlock(ctx, l.PublicPath(date), publicFilePerm, FormatEntry(stub)); err != nil {
		return fmt.Errorf("append private stub: %w", err)
	}
	return nil
}

// StubNote is the public text recorded in place of a private entry.
func StubNote(actorID string) string {
	return "a private entry was recorded by " + actorID
}

// ReadPublic returns the public entries recorded on date. A missing file
// yields no entries.
func (l *Ledger) ReadPublic(date string) ([]model.LedgerEntry, error) {
	f, err := os.Open(l.PublicPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "open public ledger")
	}
	defer f.Close()
	return ParseEntries(f)
}

// appendBlock writes data with one write call under an exclusive lock,
// retrying once on I/O class failures.
func (l *Ledger) appendBlock(ctx context.Context, path string, perm os.FileMode, data []byte) error {
	return fsutil.Retry(ctx, l.opts.RetryBackoff, func() error {
		f, err := fsutil.OpenLocked(ctx, path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm, l.opts.LockTimeout)
		if err != nil {
			return err
		}
		defer f.Close()
		defer fsutil.Unlock(f)

		if perm == privateFilePerm {
			// umask strips group/other write bits on create.
			if err := f.Chmod(perm); err != nil {
				return errclass.ErrIO.Wrap(err, "chmod "+path)
			}
		}
		if _, err := f.Write(data); err != nil {
			return errclass.ErrIO.Wrap(err, "write "+path)
		}
		if err := f.Sync(); err != nil {
			return errclass.ErrIO.Wrap(err, "sync "+path)
		}
		return nil
	})
}

func (l *Ledger) ensurePrivateDir() error {
	dir := l.PrivateDir()
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return errclass.ErrIO.Wrap(err, "create ledger dir")
	}
	err := os.Mkdir(dir, privateDirPerm)
	if err != nil && !os.IsExist(err) {
		return errclass.ErrIO.Wrap(err, "create private dir")
	}
	if err == nil {
		if err := os.Chmod(dir, privateDirPerm); err != nil {
			return errclass.ErrIO.Wrap(err, "chmod private dir")
		}
	}
	return nil
}
