package kernel

import (
	"errors"
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/hal"
)

// Error represents a syscall rejected by the gateway.
//
// Gateway errors include:
//   - Permission denied: a required rights bit is missing
//   - Invalid capability: slot empty, or object type mismatch
//   - Process not found: a pid argument names no live process
//   - Endpoint not found: an endpoint argument names no endpoint
//
// Error includes structured fields so the audit trail and callers can
// act on the rejection without parsing message text.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Pid identifies the calling process.
	Pid abi.Pid

	// Slot identifies the capability slot involved, when one is.
	Slot abi.Slot
}

// ErrorCode categorizes gateway errors.
type ErrorCode string

const (
	// ErrCodePermissionDenied indicates a capability lacks a required
	// rights bit, or the caller is not the endpoint owner.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeInvalidCapability indicates an empty slot or a capability
	// of the wrong object type.
	ErrCodeInvalidCapability ErrorCode = "INVALID_CAPABILITY"

	// ErrCodeProcessNotFound indicates a pid with no live process.
	ErrCodeProcessNotFound ErrorCode = "PROCESS_NOT_FOUND"

	// ErrCodeEndpointNotFound indicates an id with no endpoint.
	ErrCodeEndpointNotFound ErrorCode = "ENDPOINT_NOT_FOUND"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Slot != 0 || e.Code == ErrCodePermissionDenied || e.Code == ErrCodeInvalidCapability {
		return fmt.Sprintf("%s: %s (pid=%d, slot=%d)", e.Code, e.Message, e.Pid, e.Slot)
	}
	return fmt.Sprintf("%s: %s (pid=%d)", e.Code, e.Message, e.Pid)
}

// AsError returns the structured gateway error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var ke *Error
	if errors.As(err, &ke) {
		return ke, true
	}
	return nil, false
}

// IsPermissionDenied returns true if the error is a rights rejection.
// Uses errors.As to handle wrapped errors.
func IsPermissionDenied(err error) bool {
	ke, ok := AsError(err)
	return ok && ke.Code == ErrCodePermissionDenied
}

// IsInvalidCapability returns true if the error reports an empty or
// mismatched slot. Uses errors.As to handle wrapped errors.
func IsInvalidCapability(err error) bool {
	ke, ok := AsError(err)
	return ok && ke.Code == ErrCodeInvalidCapability
}

// NewPermissionDenied creates an Error for a missing rights bit.
func NewPermissionDenied(pid abi.Pid, slot abi.Slot, msg string) *Error {
	return &Error{Code: ErrCodePermissionDenied, Message: msg, Pid: pid, Slot: slot}
}

// NewInvalidCapability creates an Error for an unusable slot.
func NewInvalidCapability(pid abi.Pid, slot abi.Slot, msg string) *Error {
	return &Error{Code: ErrCodeInvalidCapability, Message: msg, Pid: pid, Slot: slot}
}

// NewProcessNotFound creates an Error for a dead or unknown pid.
func NewProcessNotFound(pid abi.Pid, msg string) *Error {
	return &Error{Code: ErrCodeProcessNotFound, Message: msg, Pid: pid}
}

// NewEndpointNotFound creates an Error for an unknown endpoint.
func NewEndpointNotFound(pid abi.Pid, msg string) *Error {
	return &Error{Code: ErrCodeEndpointNotFound, Message: msg, Pid: pid}
}

// Policy violations sit outside the capability taxonomy: the request
// was well-formed and authorized but exceeds a gateway limit.
var (
	errTooLarge        = errors.New("message exceeds gateway size limit")
	errQueueFull       = errors.New("endpoint queue at gateway depth limit")
	errInvalidArgument = errors.New("malformed syscall arguments")
)

// resultFor maps an executor error onto the mailbox result word.
func resultFor(err error) abi.ResultCode {
	if ke, ok := AsError(err); ok {
		switch ke.Code {
		case ErrCodePermissionDenied:
			return abi.ResultPermissionDenied
		case ErrCodeInvalidCapability:
			return abi.ResultInvalidCapability
		case ErrCodeProcessNotFound:
			return abi.ResultProcessNotFound
		case ErrCodeEndpointNotFound:
			return abi.ResultEndpointNotFound
		}
	}
	switch {
	case errors.Is(err, errTooLarge):
		return abi.ResultMessageTooLarge
	case errors.Is(err, errQueueFull):
		return abi.ResultQueueFull
	case errors.Is(err, errInvalidArgument):
		return abi.ResultInvalidArgument
	}
	var he *hal.Error
	if errors.As(err, &he) && he.Code == hal.ErrCodeSpawnFailed {
		return abi.ResultSpawnFailed
	}
	return abi.ResultInvalidArgument
}
