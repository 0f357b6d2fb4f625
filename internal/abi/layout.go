package abi

import "fmt"

// Status is the mailbox handshake word. A process may set Pending only
// from Idle; the kernel moves Pending to Ready; the process returns
// Ready to Idle after reading its result. No other transitions exist.
type Status uint32

const (
	StatusIdle    Status = 0
	StatusPending Status = 1
	StatusReady   Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Mailbox word layout. Offsets are in 4-byte words; the whole record is
// one 4 KiB page: an 8-word header followed by the data area. The pid
// word is written once by the kernel when the mailbox is bound so a
// process can learn its own id without a syscall; the kernel never
// reads identity back from it.
const (
	WordStatus  = 0
	WordSysno   = 1
	WordArg0    = 2
	WordArg1    = 3
	WordArg2    = 4
	WordResult  = 5
	WordDataLen = 6
	WordPid     = 7
	WordData    = 8

	HeaderWords  = 8
	MailboxBytes = 4096

	// DataCapacity is the size of the data area, the largest payload
	// one syscall can carry in either direction.
	DataCapacity = MailboxBytes - HeaderWords*4
)
