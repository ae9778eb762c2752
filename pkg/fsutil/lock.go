package fsutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
)

// DefaultLockTimeout bounds every lock wait unless configured otherwise.
const DefaultLockTimeout = 5 * time.Second

// lockPollInterval is how often a contended lock is retried.
const lockPollInterval = 10 * time.Millisecond

// LockExclusive acquires an exclusive advisory lock on f. It gives up with
// ErrLockTimeout once timeout elapses or ctx is done; it never waits forever.
func LockExclusive(ctx context.Context, f *os.File, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := tryLock(f)
		if err != nil {
			return errclass.ErrIO.Wrap(err, "flock "+f.Name())
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errclass.ErrLockTimeout.WithMessagef("%s not acquired within %s", f.Name(), timeout)
		}

		select {
		case <-ctx.Done():
			return errclass.ErrLockTimeout.Wrap(ctx.Err(), f.Name())
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock releases a lock taken with LockExclusive.
func Unlock(f *os.File) error {
	return unlock(f)
}

// OpenLocked opens path with flag/perm, creating its parent directory, and
// returns the file holding an exclusive lock. The caller must Unlock and Close.
func OpenLocked(ctx context.Context, path string, flag int, perm os.FileMode, timeout time.Duration) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "create dir for "+path)
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "open "+path)
	}
	if err := LockExclusive(ctx, f, timeout); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WithLock runs fn while holding an exclusive lock on the sidecar lockPath.
// Used where the protected file itself is replaced by rename.
func WithLock(ctx context.Context, lockPath string, timeout time.Duration, fn func() error) error {
	f, err := OpenLocked(ctx, lockPath, os.O_CREATE|os.O_RDWR, 0644, timeout)
	if err != nil {
		return err
	}
	defer f.Close()
	defer Unlock(f)

	return fn()
}

// Retry runs op and, if it fails with a retryable I/O class error, runs it
// once more after backoff.
func Retry(ctx context.Context, backoff time.Duration, op func() error) error {
	err := op()
	if err == nil || !errclass.IsRetryable(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry aborted: %w", err)
	case <-time.After(backoff):
	}
	return op()
}
