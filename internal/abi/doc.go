// Package abi defines the shared vocabulary between processes and the
// kernel: identifier types, capability rights, syscall numbers, result
// codes, the mailbox word layout, well-known message tags, and the
// canonical serialization used to hash commits and state.
//
// The package has no dependencies on other kernel packages; everything
// else imports it. Values crossing the process/kernel boundary are
// encoded with the fixed little-endian helpers in wire.go. Values that
// end up inside hash computations are encoded with MarshalCanonical,
// which produces RFC 8785 canonical JSON (UTF-16 sorted keys, NFC
// strings, no floats, no null) so a byte sequence has exactly one
// meaning and a hash has exactly one preimage shape.
package abi
