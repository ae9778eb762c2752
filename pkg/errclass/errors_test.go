package errclass_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovError_Error(t *testing.T) {
	err := errclass.ErrLockTimeout.WithMessage("ledger/public/2026-10-19.log")
	assert.Equal(t, "E_LOCK_TIMEOUT: ledger/public/2026-10-19.log", err.Error())
}

func TestGovError_Error_WithoutMessage(t *testing.T) {
	err := &errclass.GovError{Code: "E_TEST_ERROR"}
	assert.Equal(t, "E_TEST_ERROR", err.Error())
}

func TestGovError_Is(t *testing.T) {
	err := errclass.ErrLockTimeout.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrLockTimeout))
	require.False(t, errors.Is(err, errclass.ErrIO))
}

func TestGovError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("append ledger: %w", errclass.ErrIO.WithMessage("disk full"))
	assert.ErrorIs(t, err, errclass.ErrIO)
}

func TestGovError_Wrap(t *testing.T) {
	err := errclass.ErrIO.Wrap(fs.ErrPermission, "open private ledger")
	assert.Equal(t, "E_IO: open private ledger: permission denied", err.Error())
	assert.ErrorIs(t, err, errclass.ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, errclass.IsRetryable(errclass.ErrIO.WithMessage("x")))
	assert.True(t, errclass.IsRetryable(fmt.Errorf("wrap: %w", errclass.ErrIO.WithMessage("y"))))
	assert.False(t, errclass.IsRetryable(errclass.ErrLockTimeout.WithMessage("busy")))
	assert.False(t, errclass.IsRetryable(errclass.ErrConfigInvalid))
	assert.False(t, errclass.IsRetryable(errors.New("plain")))
	assert.False(t, errclass.IsRetryable(nil))
}

func TestGovError_AllErrorsDefined(t *testing.T) {
	all := []*errclass.GovError{
		errclass.ErrConfigInvalid,
		errclass.ErrEventUnknown,
		errclass.ErrIO,
		errclass.ErrLockTimeout,
		errclass.ErrPolicyViolation,
		errclass.ErrNameInvalid,
		errclass.ErrPathEscape,
		errclass.ErrFormatUnsupported,
		errclass.ErrSnapshotCorrupt,
		errclass.ErrNotInitialized,
	}
	seen := make(map[string]bool)
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
	assert.Len(t, seen, 10)
}
