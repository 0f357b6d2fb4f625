package abi

import "fmt"

// ResultCode is the value the kernel writes into the mailbox result
// word. Zero and positive values are success and carry opcode-specific
// meaning (a slot number for grant, 1 for receive-with-message).
// Negative values are errors a process can branch on.
type ResultCode int32

const (
	ResultOK ResultCode = 0

	// ResultMessage is returned by receive when a message was dequeued
	// into the data area. Receive with an empty queue returns ResultOK.
	ResultMessage ResultCode = 1

	ResultPermissionDenied  ResultCode = -1
	ResultInvalidCapability ResultCode = -2
	ResultProcessNotFound   ResultCode = -3
	ResultEndpointNotFound  ResultCode = -4
	ResultInvalidArgument   ResultCode = -5
	ResultMessageTooLarge   ResultCode = -6
	ResultQueueFull         ResultCode = -7
	ResultSpawnFailed       ResultCode = -8
)

var resultNames = map[ResultCode]string{
	ResultOK:                "ok",
	ResultMessage:           "message",
	ResultPermissionDenied:  "permission_denied",
	ResultInvalidCapability: "invalid_capability",
	ResultProcessNotFound:   "process_not_found",
	ResultEndpointNotFound:  "endpoint_not_found",
	ResultInvalidArgument:   "invalid_argument",
	ResultMessageTooLarge:   "message_too_large",
	ResultQueueFull:         "queue_full",
	ResultSpawnFailed:       "spawn_failed",
}

func (c ResultCode) String() string {
	if name, ok := resultNames[c]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int32(c))
}

// IsError reports whether c is a failure code.
func (c ResultCode) IsError() bool {
	return c < 0
}

// ParseResult maps a result name back to its code. Used by test
// scenarios that name expected results in YAML.
func ParseResult(name string) (ResultCode, bool) {
	for c, n := range resultNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}
