// Package kernel implements the syscall gateway: the single privileged
// context that verifies senders, checks capabilities, executes
// syscalls, and seals every state change into the hash-chained commit
// log.
//
// Every request walks the same stages: received from a mailbox, sender
// verified from the transport binding, logged as an audit request,
// checked against the caller's capability space, executed, committed,
// and logged as an audit response. A denied request still produces a
// response but zero commits, so the chain only ever records state that
// actually changed.
//
// All kernel state is guarded by one mutex and mutated by whoever
// holds it; in production that is the single Run goroutine, in tests
// it is the test body stepping PollOnce directly. There is no finer
// locking to reason about.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/hal"
	"github.com/cypher-asi/zero-os-sub006/internal/ipc"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
	"github.com/cypher-asi/zero-os-sub006/internal/manifest"
	"github.com/cypher-asi/zero-os-sub006/internal/replay"
	"github.com/cypher-asi/zero-os-sub006/internal/state"
)

// Default gateway policy limits. Both are backpressure policy, not
// core invariants: the queue itself is unbounded and never blocks.
const (
	DefaultMaxQueueDepth = 64
	DefaultAuditCapacity = 4096
)

// Sink receives every sealed commit and audit event as it happens.
// The store implements it; a nil sink keeps the kernel memory-only.
// A sink failure is logged and skipped: the in-memory chain stays
// authoritative and the gateway keeps running.
type Sink interface {
	AppendCommit(c commit.Commit, stateHash string) error
	AppendEvent(e audit.Event) error
}

// Kernel is the gateway and the state it guards.
type Kernel struct {
	mu sync.Mutex

	platform hal.Platform
	st       *state.State
	log      *commit.Log
	events   *audit.Log
	eps      *ipc.Registry
	pool     *mailbox.Pool
	units    map[abi.Pid]hal.Unit

	// replyRights[server][caller] counts outstanding one-shot reply
	// permissions: receiving a message from caller lets the server
	// reply to the caller's input endpoint exactly once without
	// holding a capability on it. Session state, never committed.
	replyRights map[abi.Pid]map[abi.Pid]int

	// sysCounts tallies dispatched requests per live process. Runtime
	// observability only; never part of the hashed state.
	sysCounts map[abi.Pid]uint64

	// ledger records the state hash after every commit, the record
	// replay verification is checked against.
	ledger replay.Ledger

	sink Sink

	bootID        string
	maxMsgSize    int
	maxQueueDepth int
	auditCap      int

	// deadBoxes defers mailbox teardown for processes that exited
	// inside their own syscall, so the final result is still
	// collectable before the box closes.
	deadBoxes []abi.Pid
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithSink tees every commit and audit event into a persistence sink.
func WithSink(s Sink) KernelOption {
	return func(k *Kernel) {
		k.sink = s
	}
}

// WithBootID fixes the boot identity instead of minting a fresh one.
// Deterministic test runs and restores use this.
func WithBootID(id string) KernelOption {
	return func(k *Kernel) {
		k.bootID = id
	}
}

// WithMaxMessageSize caps the payload size the gateway accepts for a
// send. Default is the full mailbox data area.
func WithMaxMessageSize(n int) KernelOption {
	return func(k *Kernel) {
		k.maxMsgSize = n
	}
}

// WithMaxQueueDepth caps how many messages one endpoint may hold
// before sends are rejected with a queue-full result.
func WithMaxQueueDepth(n int) KernelOption {
	return func(k *Kernel) {
		k.maxQueueDepth = n
	}
}

// WithAuditCapacity bounds the in-memory audit trail; zero or negative
// keeps every event.
func WithAuditCapacity(n int) KernelOption {
	return func(k *Kernel) {
		k.auditCap = n
	}
}

// New creates an unbooted kernel on the given platform.
func New(platform hal.Platform, opts ...KernelOption) *Kernel {
	k := &Kernel{
		platform:      platform,
		st:            state.New(),
		log:           commit.NewLog(),
		eps:           ipc.NewRegistry(),
		pool:          mailbox.NewPool(),
		units:         make(map[abi.Pid]hal.Unit),
		replyRights:   make(map[abi.Pid]map[abi.Pid]int),
		sysCounts:     make(map[abi.Pid]uint64),
		ledger:        make(replay.Ledger),
		maxMsgSize:    abi.MaxMessageData,
		maxQueueDepth: DefaultMaxQueueDepth,
		auditCap:      DefaultAuditCapacity,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.events = audit.NewLog(k.auditCap)
	return k
}

// Boot seals the genesis commit and spawns the manifest's processes
// with their declared grants. It must be called exactly once, before
// Run.
func (k *Kernel) Boot(spec manifest.BootSpec) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.st.Seq != 0 {
		return fmt.Errorf("kernel already booted (seq %d)", k.st.Seq)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("boot manifest: %w", err)
	}
	spec = spec.Normalize()
	manifestHash, err := spec.Hash()
	if err != nil {
		return fmt.Errorf("boot manifest: %w", err)
	}

	bootID := k.bootID
	if bootID == "" {
		bootID = uuid.Must(uuid.NewV7()).String()
		k.bootID = bootID
	}

	k.commitAndApply(commit.Genesis{BootID: bootID, ManifestHash: manifestHash})
	slog.Info("kernel booted", "boot_id", bootID, "manifest", spec.Name, "manifest_hash", manifestHash)

	for _, ps := range spec.Processes {
		pid, err := k.createProcess(abi.KernelPid, ps.Name, ps.Program)
		if err != nil {
			return fmt.Errorf("boot process %q: %w", ps.Name, err)
		}
		for _, g := range ps.Grants {
			k.insertCap(pid, abi.Capability{Type: g.Type, Object: g.Object, Rights: g.Rights})
		}
	}
	return nil
}

// Restore rebuilds a kernel from a persisted commit chain and audit
// trail. The chain is verified while loading and replayed through the
// same Apply path the live gateway uses. Restored kernels hold no
// running units: they serve the query and verification surfaces, and a
// daemon that wants live processes boots fresh.
func Restore(platform hal.Platform, commits []commit.Commit, events []audit.Event, opts ...KernelOption) (*Kernel, error) {
	k := New(platform, opts...)

	log, err := commit.Restore(abi.ZeroHash, commits)
	if err != nil {
		return nil, fmt.Errorf("restore chain: %w", err)
	}
	k.log = log
	for _, c := range commits {
		if err := k.st.Apply(c); err != nil {
			return nil, fmt.Errorf("restore replay: %w", err)
		}
		k.ledger[c.Seq] = k.st.Hash()
	}
	for _, id := range k.st.EndpointIDs() {
		if _, err := k.eps.Create(id, k.st.Endpoints[id].Owner); err != nil {
			return nil, fmt.Errorf("restore endpoints: %w", err)
		}
	}

	al, err := audit.Restore(k.auditCap, events)
	if err != nil {
		return nil, fmt.Errorf("restore audit: %w", err)
	}
	k.events = al
	for _, e := range events {
		if e.Kind != audit.KindRequest {
			continue
		}
		if _, live := k.st.Procs[e.Pid]; live {
			k.sysCounts[e.Pid]++
		}
	}
	k.bootID = k.st.BootID
	return k, nil
}

// Verify replays the retained commit chain from genesis and checks
// every recorded hash against the ledger, reporting the first
// divergence. Only valid while the chain is untrimmed.
func (k *Kernel) Verify() error {
	k.mu.Lock()
	commits := k.log.All()
	first := k.log.FirstSeq()
	ledger := make(replay.Ledger, len(k.ledger))
	for seq, h := range k.ledger {
		ledger[seq] = h
	}
	k.mu.Unlock()

	if first != 0 {
		return fmt.Errorf("chain trimmed at seq %d, cannot replay from genesis", first)
	}
	_, err := replay.ReplayAndVerify(commits, ledger)
	return err
}

// Shutdown stops every running unit and closes every mailbox. The
// commit chain and audit trail stay intact for inspection.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	units := make([]hal.Unit, 0, len(k.units))
	pids := make([]abi.Pid, 0, len(k.units))
	for pid, u := range k.units {
		units = append(units, u)
		pids = append(pids, pid)
	}
	k.units = make(map[abi.Pid]hal.Unit)
	for _, pid := range pids {
		k.pool.Unbind(pid)
	}
	k.mu.Unlock()

	for _, u := range units {
		u.Stop()
	}
	slog.Info("kernel shut down", "units", len(units))
}

// commitAndApply seals a body onto the chain, applies it, and records
// the resulting state hash. Executors validate every reference before
// committing, so a failure in here is an invariant break rather than a
// user error, and the kernel refuses to continue with a chain it no
// longer trusts.
func (k *Kernel) commitAndApply(b commit.Body) commit.Commit {
	c, err := k.log.Append(b)
	if err != nil {
		panic(fmt.Sprintf("kernel: commit encode failed: %v", err))
	}
	if err := k.st.Apply(c); err != nil {
		panic(fmt.Sprintf("kernel: commit %d (%s) rejected by state: %v", c.Seq, c.Type(), err))
	}
	hash := k.st.Hash()
	k.ledger[c.Seq] = hash
	if k.sink != nil {
		if err := k.sink.AppendCommit(c, hash); err != nil {
			slog.Error("commit sink append failed", "seq", c.Seq, "type", c.Type().String(), "error", err)
		}
	}
	return c
}

// insertCap mints a capability id, commits the capability into pid's
// next free slot, and returns the slot.
func (k *Kernel) insertCap(pid abi.Pid, c abi.Capability) abi.Slot {
	sp, ok := k.st.Caps.Space(pid)
	if !ok {
		panic(fmt.Sprintf("kernel: no capability space for pid %d", pid))
	}
	slot := sp.NextFree()
	c.ID = abi.CapID(k.st.NextCapID)
	k.commitAndApply(commit.CapInserted{Pid: pid, Slot: slot, Cap: c})
	return slot
}

// createProcess binds transport, starts the execution unit, and
// commits the process record with its input endpoint at slot 0.
// Callers layer further grants on top. No commit is written until the
// unit is actually running, so a spawn failure leaves no trace in the
// chain.
func (k *Kernel) createProcess(parent abi.Pid, name, program string) (abi.Pid, error) {
	child := abi.Pid(k.st.NextPid)
	box, err := k.pool.Bind(child)
	if err != nil {
		return 0, fmt.Errorf("bind mailbox for pid %d: %w", child, err)
	}
	unit, err := k.platform.Spawn(context.Background(), program, child, box)
	if err != nil {
		k.pool.Unbind(child)
		return 0, err
	}

	k.commitAndApply(commit.ProcessCreated{Pid: child, Name: name, Parent: parent})
	epID := abi.EndpointID(k.st.NextEndpoint)
	k.commitAndApply(commit.EndpointCreated{Endpoint: epID, Owner: child})
	if _, err := k.eps.Create(epID, child); err != nil {
		panic(fmt.Sprintf("kernel: endpoint registry out of sync: %v", err))
	}
	k.insertCap(child, abi.Capability{
		Type:   abi.ObjectEndpoint,
		Object: uint64(epID),
		Rights: abi.RightsAll,
	})

	k.units[child] = unit
	slog.Info("process spawned", "pid", child, "name", name, "parent", parent, "input_endpoint", epID)
	return child, nil
}

// capAt fetches the capability in one of the caller's slots.
func (k *Kernel) capAt(pid abi.Pid, slot abi.Slot) (abi.Capability, error) {
	sp, ok := k.st.Caps.Space(pid)
	if !ok {
		return abi.Capability{}, NewProcessNotFound(pid, "no capability space")
	}
	c, ok := sp.Get(slot)
	if !ok {
		return abi.Capability{}, NewInvalidCapability(pid, slot, "empty slot")
	}
	return c, nil
}

// capFor additionally enforces the object type and required rights.
// This runs at execution time, never at submission time, so a revoke
// racing a syscall makes the syscall fail instead of retroactively
// invalidating a committed effect.
func (k *Kernel) capFor(pid abi.Pid, slot abi.Slot, t abi.ObjectType, need abi.Rights) (abi.Capability, error) {
	c, err := k.capAt(pid, slot)
	if err != nil {
		return abi.Capability{}, err
	}
	if c.Type != t {
		return abi.Capability{}, NewInvalidCapability(pid, slot,
			fmt.Sprintf("holds %s capability, need %s", c.Type, t))
	}
	if !need.SubsetOf(c.Rights) {
		return abi.Capability{}, NewPermissionDenied(pid, slot,
			fmt.Sprintf("rights %q do not cover %q", c.Rights, need))
	}
	return c, nil
}

// inputEndpoint resolves a process's designated input endpoint: the
// lowest-id endpoint it owns. Derived from replayable state, so live
// delivery and replay agree on where notifications land.
func (k *Kernel) inputEndpoint(pid abi.Pid) (abi.EndpointID, bool) {
	owned := k.st.OwnedEndpoints(pid)
	if len(owned) == 0 {
		return 0, false
	}
	return owned[0], true
}

// CheckAccess reports whether the capability in pid's slot authorizes
// the given access, without executing anything. Permission surfaces
// use it to answer "would this pass" with the same code path the
// gateway itself runs.
func (k *Kernel) CheckAccess(pid abi.Pid, slot abi.Slot, t abi.ObjectType, need abi.Rights) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := k.capFor(pid, slot, t, need)
	return err
}
