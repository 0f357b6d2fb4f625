package replay

import (
	"errors"
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/state"
)

// Error reports a replay failure with enough structure for callers to
// act on it: the failing sequence number always, and for hash
// divergence the expected and actual digests.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the commit sequence the replay stopped at.
	Seq uint64

	// Expected and Actual carry the diverging digests for
	// ErrCodeVerificationFailed; empty otherwise.
	Expected string
	Actual   string

	// Cause is the underlying apply error, when one exists.
	Cause error
}

// ErrorCode categorizes replay errors.
type ErrorCode string

const (
	// ErrCodeInvalidReference indicates a commit names an entity the
	// rebuilt state does not contain.
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	// ErrCodeDuplicateEntity indicates a commit re-creates an entity
	// that already exists.
	ErrCodeDuplicateEntity ErrorCode = "DUPLICATE_ENTITY"

	// ErrCodeVerificationFailed indicates a recomputed digest does not
	// match the recorded one.
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"

	// ErrCodeApplicationError covers every other apply failure.
	ErrCodeApplicationError ErrorCode = "APPLICATION_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == ErrCodeVerificationFailed {
		return fmt.Sprintf("%s at seq %d: expected %s, got %s",
			e.Code, e.Seq, shortHash(e.Expected), shortHash(e.Actual))
	}
	return fmt.Sprintf("%s at seq %d: %s", e.Code, e.Seq, e.Message)
}

// Unwrap exposes the underlying apply error for errors.Is chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError returns the structured replay error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsVerificationFailed returns true if the error reports hash
// divergence. Uses errors.As to handle wrapped errors.
func IsVerificationFailed(err error) bool {
	re, ok := AsError(err)
	return ok && re.Code == ErrCodeVerificationFailed
}

// NewVerificationError creates an Error for a digest mismatch at seq.
func NewVerificationError(seq uint64, expected, actual string) *Error {
	return &Error{
		Code:     ErrCodeVerificationFailed,
		Message:  "recorded and recomputed digests differ",
		Seq:      seq,
		Expected: expected,
		Actual:   actual,
	}
}

// newApplyError wraps a state apply failure, classifying it by the
// sentinel it carries.
func newApplyError(seq uint64, cause error) *Error {
	code := ErrCodeApplicationError
	switch {
	case errors.Is(cause, state.ErrInvalidReference):
		code = ErrCodeInvalidReference
	case errors.Is(cause, state.ErrDuplicateEntity):
		code = ErrCodeDuplicateEntity
	}
	return &Error{
		Code:    code,
		Message: cause.Error(),
		Seq:     seq,
		Cause:   cause,
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
