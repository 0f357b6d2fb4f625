package abi

// Pid identifies a process for its whole lifetime. Pids are assigned by
// the kernel, increase monotonically, and are never reused while any
// capability or endpoint still references them.
type Pid uint64

// KernelPid is the reserved identity of the kernel itself. It appears as
// the sender of privileged deliveries (console input, revocation notices)
// and is never assigned to a spawned process.
const KernelPid Pid = 0

// EndpointID identifies a message endpoint. Assigned by the kernel,
// monotonic, never reused.
type EndpointID uint64

// CapID is the globally unique, monotonic identity of a capability.
// A CapID is minted only inside the kernel; processes see it through
// inspect results but can never construct one that the kernel accepts.
type CapID uint64

// Slot is a small index into one process's capability space. Slots are
// unique within a process and stable for the life of the capability
// they name.
type Slot uint32

// SlotInput is the conventional slot of the capability a process
// receives at spawn for its own input endpoint. Revocation notices and
// console input arrive on that endpoint.
const SlotInput Slot = 0

// EventID orders entries in the syscall audit trail.
type EventID uint64
