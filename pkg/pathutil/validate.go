// Package pathutil provides path, name and glob utilities for warden.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/warden/pkg/errclass"
)

// NormalizeActorID returns the NFC form of id with surrounding space removed.
func NormalizeActorID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// ValidateActorID checks an actor identifier can be recorded. Any text is
// accepted except the empty string and control characters, which would
// split a ledger header. Components that store per-actor files derive the
// file name from the id rather than using it directly.
func ValidateActorID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errclass.ErrNameInvalid.WithMessage("actor id must not be empty")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("actor id must not contain control characters: %q", id)
		}
	}
	return nil
}

// ValidateUnitID checks a review unit identifier (a path or change-set id).
func ValidateUnitID(unit string) error {
	if strings.TrimSpace(unit) == "" {
		return errclass.ErrNameInvalid.WithMessage("unit id must not be empty")
	}
	for _, r := range unit {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("unit id must not contain control characters: %q", unit)
		}
	}
	return nil
}

// ValidatePathSafety verifies target path does not escape root.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve root: %v", err)
	}

	// Try resolving target; if it doesn't exist, resolve closest ancestor
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	if !strings.HasPrefix(resolvedTarget+"/", resolvedRoot+"/") &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes root: %s", targetPath)
	}

	return nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
