// Package hal abstracts the hosting environment behind a single
// platform trait: spawning process execution units, time sources, a
// random-byte source, and the console sink. The kernel is written
// against this interface alone, so its logic is identical whether
// units are goroutines, workers, or anything else.
package hal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// Platform is everything the kernel consumes from its host.
type Platform interface {
	// Spawn starts the named program as an execution unit attached to
	// the given mailbox. The kernel has already assigned the pid and
	// bound the mailbox; the platform only brings the unit to life.
	Spawn(ctx context.Context, name string, pid abi.Pid, box *mailbox.Mailbox) (Unit, error)

	// Now returns wall-clock time. Never part of replay-relevant
	// state; used for audit timestamps and operator output only.
	Now() time.Time

	// Monotonic returns time elapsed since the platform started.
	Monotonic() time.Duration

	// Rand fills b with random bytes.
	Rand(b []byte) error

	// ConsoleWrite delivers console output from a process.
	ConsoleWrite(pid abi.Pid, data []byte) error
}

// Unit is a running process execution unit.
type Unit interface {
	// Stop cancels the unit and waits for it to halt.
	Stop()

	// Done closes when the unit has halted.
	Done() <-chan struct{}
}

// Error is a platform failure with a stable code the kernel can map
// onto syscall results.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Cause is the underlying host error, when one exists.
	Cause error
}

// ErrorCode categorizes platform errors.
type ErrorCode string

const (
	// ErrCodeOutOfMemory indicates the platform could not allocate a
	// unit's memory arena.
	ErrCodeOutOfMemory ErrorCode = "OUT_OF_MEMORY"

	// ErrCodeSpawnFailed indicates a unit could not be started.
	ErrCodeSpawnFailed ErrorCode = "PROCESS_SPAWN_FAILED"

	// ErrCodeProcessNotFound indicates the platform holds no unit for
	// the pid.
	ErrCodeProcessNotFound ErrorCode = "PROCESS_NOT_FOUND"

	// ErrCodeInvalidMessage indicates a malformed cross-boundary
	// payload.
	ErrCodeInvalidMessage ErrorCode = "INVALID_MESSAGE"

	// ErrCodeNotSupported indicates the platform lacks the requested
	// facility.
	ErrCodeNotSupported ErrorCode = "NOT_SUPPORTED"

	// ErrCodeIO indicates a host I/O failure.
	ErrCodeIO ErrorCode = "IO_ERROR"

	// ErrCodeInvalidArgument indicates arguments the platform rejects.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying host error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError returns the structured platform error wrapped in err, if
// any.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsSpawnFailed returns true if the error reports a failed unit
// start. Uses errors.As to handle wrapped errors.
func IsSpawnFailed(err error) bool {
	he, ok := AsError(err)
	return ok && he.Code == ErrCodeSpawnFailed
}

// NewSpawnError creates an Error for a unit that could not start.
func NewSpawnError(name string, cause error) *Error {
	return &Error{
		Code:    ErrCodeSpawnFailed,
		Message: fmt.Sprintf("program %q", name),
		Cause:   cause,
	}
}

// NewIOError creates an Error for a host I/O failure.
func NewIOError(op string, cause error) *Error {
	return &Error{
		Code:    ErrCodeIO,
		Message: op,
		Cause:   cause,
	}
}
