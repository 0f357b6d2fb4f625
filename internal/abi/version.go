package abi

// ABIVersion is the version of the mailbox layout, syscall numbers, and
// wire encodings. Bumped only on incompatible change.
const ABIVersion = "1"

// KernelVersion is the implementation version recorded in store
// metadata and CLI output.
const KernelVersion = "0.1.0"
