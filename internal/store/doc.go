// Package store provides SQLite-backed durable storage for the kernel
// commit chain and audit trail.
//
// The store implements an append-only log with:
//   - Commits: the hash-linked history of every state change, one row
//     per sealed commit, including the state digest observed after the
//     commit applied (the replay ledger)
//   - Events: request/response records from the syscall gateway
//   - Meta: boot identity and other key/value bookkeeping
//
// # Critical Patterns
//
//   - All ordering uses seq and event id (logical clocks), NEVER
//     timestamps. This keeps replay deterministic regardless of wall
//     time.
//   - Every append is idempotent: ON CONFLICT DO NOTHING on the
//     logical key, so a gateway restart that re-emits rows it already
//     wrote is harmless.
//   - Commit bodies are stored as canonical JSON, byte-identical to
//     what the chain hash covers. Loading re-verifies the linkage, so
//     a database edited by hand fails verification instead of
//     replaying quietly.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Append methods take no context: they run on the gateway goroutine
// under the kernel mutex, where blocking on anything but the local
// disk is already a bug. Read methods serve the CLI and take one.
package store
