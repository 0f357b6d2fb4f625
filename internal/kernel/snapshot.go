package kernel

import (
	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
	"github.com/cypher-asi/zero-os-sub006/internal/replay"
)

// Read-only snapshots for dashboards, the CLI, and tests. Everything
// here copies under the kernel lock and returns plain values; nothing
// hands out a reference into live state.

// ProcessInfo is one row of the process table snapshot. Syscalls is
// the runtime dispatch tally, not committed state.
type ProcessInfo struct {
	Pid       abi.Pid
	Name      string
	Parent    abi.Pid
	Caps      int
	Syscalls  uint64
	Endpoints []abi.EndpointID
}

// EndpointInfo is one row of the endpoint snapshot. Depth is runtime
// queue occupancy; Sent and Bytes are the committed delivery counters.
type EndpointInfo struct {
	ID    abi.EndpointID
	Owner abi.Pid
	Depth int
	Sent  uint64
	Bytes uint64
}

// CapInfo is one occupied slot in a capability space.
type CapInfo struct {
	Slot abi.Slot
	Cap  abi.Capability
}

// Processes returns the live process table, ascending by pid.
func (k *Kernel) Processes() []ProcessInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]ProcessInfo, 0, len(k.st.Procs))
	for _, pid := range k.st.Pids() {
		p := k.st.Procs[pid]
		caps := 0
		if sp, ok := k.st.Caps.Space(pid); ok {
			caps = sp.Len()
		}
		out = append(out, ProcessInfo{
			Pid:       p.Pid,
			Name:      p.Name,
			Parent:    p.Parent,
			Caps:      caps,
			Syscalls:  k.sysCounts[pid],
			Endpoints: k.st.OwnedEndpoints(pid),
		})
	}
	return out
}

// Endpoints returns the live endpoints, ascending by id.
func (k *Kernel) Endpoints() []EndpointInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]EndpointInfo, 0, len(k.st.Endpoints))
	for _, id := range k.st.EndpointIDs() {
		sep := k.st.Endpoints[id]
		depth := 0
		if ep, ok := k.eps.Get(id); ok {
			depth = ep.Depth()
		}
		out = append(out, EndpointInfo{
			ID:    sep.ID,
			Owner: sep.Owner,
			Depth: depth,
			Sent:  sep.Sent,
			Bytes: sep.Bytes,
		})
	}
	return out
}

// CapsOf returns a process's capability table, ascending by slot.
func (k *Kernel) CapsOf(pid abi.Pid) []CapInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	sp, ok := k.st.Caps.Space(pid)
	if !ok {
		return nil
	}
	out := make([]CapInfo, 0, sp.Len())
	for _, slot := range sp.Slots() {
		c, _ := sp.Get(slot)
		out = append(out, CapInfo{Slot: slot, Cap: c})
	}
	return out
}

// Commits returns a copy of the retained commit chain.
func (k *Kernel) Commits() []commit.Commit {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.log.All()
}

// Events returns a copy of the retained audit trail.
func (k *Kernel) Events() []audit.Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.events.Events()
}

// Ledger returns a copy of the per-commit state hash record.
func (k *Kernel) Ledger() replay.Ledger {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(replay.Ledger, len(k.ledger))
	for seq, h := range k.ledger {
		out[seq] = h
	}
	return out
}

// StateHash returns the hash of the current state.
func (k *Kernel) StateHash() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.st.Hash()
}

// Head returns the hash of the newest commit.
func (k *Kernel) Head() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.log.Head()
}

// Seq returns the sequence number the next commit will carry.
func (k *Kernel) Seq() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.st.Seq
}

// BootID returns the boot identity sealed in the genesis commit.
func (k *Kernel) BootID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.st.BootID
}

// Mailbox returns the transport binding for a live process. The test
// harness posts requests through it directly.
func (k *Kernel) Mailbox(pid abi.Pid) (*mailbox.Mailbox, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pool.Get(pid)
}
