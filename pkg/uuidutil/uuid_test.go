package uuidutil_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jvs-project/warden/pkg/uuidutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewV7_Version(t *testing.T) {
	parsed, err := uuid.Parse(uuidutil.NewV7())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewV7_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := uuidutil.NewV7()
		assert.False(t, seen[id], "duplicate UUID: %s", id)
		seen[id] = true
	}
}
