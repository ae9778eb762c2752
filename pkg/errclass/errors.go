package errclass

import (
	"errors"
	"fmt"
)

// GovError is a stable, machine-readable error class.
type GovError struct {
	Code    string
	Message string
	Cause   error
}

func (e *GovError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = msg + ": " + e.Cause.Error()
		}
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *GovError) Is(target error) bool {
	t, ok := target.(*GovError)
	return ok && e.Code == t.Code
}

func (e *GovError) Unwrap() error {
	return e.Cause
}

// WithMessage returns a new GovError with the same Code but a specific message.
func (e *GovError) WithMessage(msg string) *GovError {
	return &GovError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new GovError with a formatted message.
func (e *GovError) WithMessagef(format string, args ...any) *GovError {
	return &GovError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new GovError with the same Code carrying cause.
func (e *GovError) Wrap(cause error, msg string) *GovError {
	return &GovError{Code: e.Code, Message: msg, Cause: cause}
}

// Stable error classes.
var (
	ErrConfigInvalid     = &GovError{Code: "E_CONFIG_INVALID"}
	ErrEventUnknown      = &GovError{Code: "E_EVENT_UNKNOWN"}
	ErrIO                = &GovError{Code: "E_IO"}
	ErrLockTimeout       = &GovError{Code: "E_LOCK_TIMEOUT"}
	ErrPolicyViolation   = &GovError{Code: "E_POLICY_VIOLATION"}
	ErrNameInvalid       = &GovError{Code: "E_NAME_INVALID"}
	ErrPathEscape        = &GovError{Code: "E_PATH_ESCAPE"}
	ErrFormatUnsupported = &GovError{Code: "E_FORMAT_UNSUPPORTED"}
	ErrSnapshotCorrupt   = &GovError{Code: "E_SNAPSHOT_CORRUPT"}
	ErrNotInitialized    = &GovError{Code: "E_NOT_INITIALIZED"}
)

// IsRetryable reports whether err is an I/O failure worth one retry. A lock
// timeout is not: the wait already spent the caller's whole lock budget.
func IsRetryable(err error) bool {
	var ge *GovError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Code == ErrIO.Code
}
