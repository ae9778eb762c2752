package pathutil

import (
	"path/filepath"
	"strings"
)

// MatchGlob reports whether path matches pattern. A pattern without a
// separator matches the base name ("*.go"). A pattern with separators matches
// the trailing components of path, and a leading "**/" matches any depth
// ("**/internal/*.go", "src/*.ts").
func MatchGlob(pattern, path string) bool {
	path = filepath.ToSlash(filepath.Clean(path))
	pattern = filepath.ToSlash(pattern)

	if !strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, filepath.Base(path))
		return ok
	}

	pattern = strings.TrimPrefix(pattern, "**/")
	parts := strings.Split(path, "/")
	want := len(strings.Split(pattern, "/"))
	if want > len(parts) {
		return false
	}
	for start := 0; start+want <= len(parts); start++ {
		candidate := strings.Join(parts[start:start+want], "/")
		if ok, _ := filepath.Match(pattern, candidate); ok {
			return true
		}
	}
	return false
}

// MatchAny reports whether path matches at least one pattern.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if MatchGlob(p, path) {
			return true
		}
	}
	return false
}
