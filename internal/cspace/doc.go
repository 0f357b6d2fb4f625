// Package cspace implements per-process capability spaces: the kernel's
// arena of capability records indexed by (pid, slot).
//
// A Space maps small slot numbers to capability values for one process.
// Slots are allocated monotonically and never reused after removal, so
// a stale slot held by a process fails with an empty-slot lookup rather
// than silently aliasing a newer capability.
//
// The package is purely mechanical: it stores and retrieves records.
// Permission semantics (grant bits, attenuation, object checks) are
// enforced by the gateway before anything lands here, and every
// mutation is driven by a commit so the replayed table matches the
// live one slot for slot.
package cspace
