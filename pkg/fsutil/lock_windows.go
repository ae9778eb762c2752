//go:build windows

package fsutil

import "os"

// Locking is a no-op on Windows; hooks there run one process at a time.
func tryLock(_ *os.File) (bool, error) { return true, nil }
func unlock(_ *os.File) error          { return nil }
