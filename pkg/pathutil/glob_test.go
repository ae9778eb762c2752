package pathutil_test

import (
	"testing"

	"github.com/jvs-project/warden/pkg/pathutil"
	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.go", "/repo/internal/ledger/ledger.go", true},
		{"*.go", "/repo/README.md", false},
		{"*.log", "/repo/.warden/ledger/public/2026-10-19.log", true},
		{"src/*.ts", "/repo/src/app.ts", true},
		{"src/*.ts", "/repo/src/nested/app.ts", false},
		{"**/internal/*.go", "/repo/a/b/internal/x.go", true},
		{"**/internal/*.go", "/repo/internal/sub/x.go", false},
		{"bin/*", "bin/warden", true},
		{"a/b/c/d/*", "b/c/d/x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pathutil.MatchGlob(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"*.go", "*.py"}
	assert.True(t, pathutil.MatchAny(patterns, "main.py"))
	assert.False(t, pathutil.MatchAny(patterns, "main.rs"))
	assert.False(t, pathutil.MatchAny(nil, "main.go"))
}
