// Package state holds the replay-relevant kernel state: the process
// table, endpoint metadata, capability spaces, and allocation counters.
//
// The only mutation path is Apply, driven by commits. The live gateway
// and the replay engine both go through it, which is what makes replay
// reach the same state the gateway reached: there is no second code
// path to diverge.
//
// Deliberately absent: queued message payloads, wall-clock times, and
// anything read from I/O. Those never influence the state hash.
package state

import (
	"errors"
	"slices"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/cspace"
)

// Sentinel causes for Apply failures. The replay engine maps these onto
// its error taxonomy; the gateway treats any of them as an internal
// invariant break because it validates before committing.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrDuplicateEntity  = errors.New("duplicate entity")
	ErrOutOfOrder       = errors.New("commit out of order")
)

// Process is one live process's replay-relevant record.
type Process struct {
	Pid    abi.Pid
	Name   string
	Parent abi.Pid
}

// Endpoint is the replay-relevant view of an endpoint: identity,
// ownership, and delivery counters. Queue contents live in the ipc
// registry and are not replayable.
type Endpoint struct {
	ID    abi.EndpointID
	Owner abi.Pid
	Sent  uint64
	Bytes uint64
}

// CapRef names one capability in place: the holder, the slot, and the
// record. Used when computing which holders a teardown will affect.
type CapRef struct {
	Pid  abi.Pid
	Slot abi.Slot
	Cap  abi.Capability
}

// State is the deterministic core the commit chain describes.
type State struct {
	BootID       string
	ManifestHash string

	// Seq is the sequence number the next commit must carry.
	Seq uint64

	Procs     map[abi.Pid]*Process
	Endpoints map[abi.EndpointID]*Endpoint
	Caps      *cspace.Table

	NextPid      uint64
	NextEndpoint uint64
	NextCapID    uint64
}

// New returns the empty genesis-ready state. Identifier counters start
// at 1; zero values stay reserved for the kernel.
func New() *State {
	return &State{
		Procs:        make(map[abi.Pid]*Process),
		Endpoints:    make(map[abi.EndpointID]*Endpoint),
		Caps:         cspace.NewTable(),
		NextPid:      1,
		NextEndpoint: 1,
		NextCapID:    1,
	}
}

// Pids returns the live process ids, ascending.
func (s *State) Pids() []abi.Pid {
	out := make([]abi.Pid, 0, len(s.Procs))
	for pid := range s.Procs {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out
}

// EndpointIDs returns the live endpoint ids, ascending.
func (s *State) EndpointIDs() []abi.EndpointID {
	out := make([]abi.EndpointID, 0, len(s.Endpoints))
	for id := range s.Endpoints {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// OwnedEndpoints returns the endpoints a process owns, ascending.
func (s *State) OwnedEndpoints(pid abi.Pid) []abi.EndpointID {
	var out []abi.EndpointID
	for id, ep := range s.Endpoints {
		if ep.Owner == pid {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// EndpointCapHolders lists every capability in any space that refers to
// one of the given endpoints, in deterministic (pid, slot) order. The
// gateway calls this before applying a teardown commit to know who
// must receive revocation notices.
func (s *State) EndpointCapHolders(eps []abi.EndpointID) []CapRef {
	dead := make(map[uint64]bool, len(eps))
	for _, id := range eps {
		dead[uint64(id)] = true
	}
	var out []CapRef
	for _, pid := range s.Caps.Pids() {
		sp, _ := s.Caps.Space(pid)
		for _, slot := range sp.Slots() {
			c, _ := sp.Get(slot)
			if c.Type == abi.ObjectEndpoint && dead[c.Object] {
				out = append(out, CapRef{Pid: pid, Slot: slot, Cap: c})
			}
		}
	}
	return out
}
