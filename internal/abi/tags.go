package abi

// Message tags with the high bit set are reserved for the kernel and
// system services; sandboxed senders may use any tag below KernelTagBase.
// These are IPC conventions, not syscalls: the payloads travel through
// ordinary endpoint queues.
const (
	KernelTagBase uint32 = 0x8000_0000

	// TagCapRevoked carries a RevokeNote to the former holder's input
	// endpoint after a capability is revoked.
	TagCapRevoked uint32 = KernelTagBase | 0x01

	// TagConsoleInput delivers console bytes typed by the user into the
	// focused process's input endpoint.
	TagConsoleInput uint32 = KernelTagBase | 0x02

	// TagServiceRegister and TagServiceLookup are the name-service
	// conventions system processes speak over IPC.
	TagServiceRegister uint32 = KernelTagBase | 0x03
	TagServiceLookup   uint32 = KernelTagBase | 0x04

	// TagPermissionRequest and TagPermissionRevoke carry user-facing
	// permission prompts between the shell and the permission broker.
	TagPermissionRequest uint32 = KernelTagBase | 0x05
	TagPermissionRevoke  uint32 = KernelTagBase | 0x06
)

// IsKernelTag reports whether tag sits in the reserved range.
func IsKernelTag(tag uint32) bool {
	return tag&KernelTagBase != 0
}
