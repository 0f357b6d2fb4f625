package state

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
)

// Apply mutates the state with one commit. Commits must arrive in
// strict sequence order starting from genesis; every violation of a
// structural rule is reported with one of the package's sentinel
// causes and leaves the state untouched.
func (s *State) Apply(c commit.Commit) error {
	if c.Seq != s.Seq {
		return fmt.Errorf("%w: seq %d, want %d", ErrOutOfOrder, c.Seq, s.Seq)
	}
	if s.Seq == 0 && c.Type() != commit.TypeGenesis {
		return fmt.Errorf("%w: chain must start with genesis, got %s", ErrInvalidReference, c.Type())
	}

	var err error
	switch b := c.Body.(type) {
	case commit.Genesis:
		err = s.applyGenesis(b)
	case commit.ProcessCreated:
		err = s.applyProcessCreated(b)
	case commit.ProcessExited:
		err = s.applyProcessExited(b)
	case commit.EndpointCreated:
		err = s.applyEndpointCreated(b)
	case commit.EndpointDestroyed:
		err = s.applyEndpointDestroyed(b)
	case commit.CapInserted:
		err = s.applyCapInserted(b)
	case commit.CapRemoved:
		err = s.applyCapRemoved(b)
	case commit.MessageSent:
		err = s.applyMessageSent(b)
	default:
		err = fmt.Errorf("%w: unknown commit type %s", ErrInvalidReference, c.Type())
	}
	if err != nil {
		return fmt.Errorf("apply seq %d (%s): %w", c.Seq, c.Type(), err)
	}

	s.Seq++
	return nil
}

func (s *State) applyGenesis(b commit.Genesis) error {
	if s.Seq != 0 {
		return fmt.Errorf("%w: genesis after seq 0", ErrDuplicateEntity)
	}
	s.BootID = b.BootID
	s.ManifestHash = b.ManifestHash
	return nil
}

func (s *State) applyProcessCreated(b commit.ProcessCreated) error {
	if _, exists := s.Procs[b.Pid]; exists {
		return fmt.Errorf("%w: pid %d", ErrDuplicateEntity, b.Pid)
	}
	if b.Pid == abi.KernelPid {
		return fmt.Errorf("%w: pid 0 is reserved", ErrInvalidReference)
	}
	if b.Parent != abi.KernelPid {
		if _, ok := s.Procs[b.Parent]; !ok {
			return fmt.Errorf("%w: parent pid %d", ErrInvalidReference, b.Parent)
		}
	}
	if err := s.Caps.Create(b.Pid); err != nil {
		return fmt.Errorf("%w: cspace for pid %d", ErrDuplicateEntity, b.Pid)
	}
	s.Procs[b.Pid] = &Process{Pid: b.Pid, Name: b.Name, Parent: b.Parent}
	if uint64(b.Pid) >= s.NextPid {
		s.NextPid = uint64(b.Pid) + 1
	}
	return nil
}

// applyProcessExited performs the full teardown deterministically:
// the process record and its cspace go away, every endpoint it owned
// is destroyed, and capabilities other processes held on those
// endpoints are scrubbed in (pid, slot) order. Counters never rewind,
// so the dead pid is not reused.
func (s *State) applyProcessExited(b commit.ProcessExited) error {
	if _, ok := s.Procs[b.Pid]; !ok {
		return fmt.Errorf("%w: pid %d", ErrInvalidReference, b.Pid)
	}

	owned := s.OwnedEndpoints(b.Pid)
	delete(s.Procs, b.Pid)
	s.Caps.Drop(b.Pid)
	for _, id := range owned {
		delete(s.Endpoints, id)
	}
	s.scrubEndpointCaps(owned)
	return nil
}

func (s *State) applyEndpointCreated(b commit.EndpointCreated) error {
	if _, exists := s.Endpoints[b.Endpoint]; exists {
		return fmt.Errorf("%w: endpoint %d", ErrDuplicateEntity, b.Endpoint)
	}
	if _, ok := s.Procs[b.Owner]; !ok {
		return fmt.Errorf("%w: owner pid %d", ErrInvalidReference, b.Owner)
	}
	s.Endpoints[b.Endpoint] = &Endpoint{ID: b.Endpoint, Owner: b.Owner}
	if uint64(b.Endpoint) >= s.NextEndpoint {
		s.NextEndpoint = uint64(b.Endpoint) + 1
	}
	return nil
}

func (s *State) applyEndpointDestroyed(b commit.EndpointDestroyed) error {
	if _, ok := s.Endpoints[b.Endpoint]; !ok {
		return fmt.Errorf("%w: endpoint %d", ErrInvalidReference, b.Endpoint)
	}
	delete(s.Endpoints, b.Endpoint)
	s.scrubEndpointCaps([]abi.EndpointID{b.Endpoint})
	return nil
}

func (s *State) applyCapInserted(b commit.CapInserted) error {
	sp, ok := s.Caps.Space(b.Pid)
	if !ok {
		return fmt.Errorf("%w: pid %d", ErrInvalidReference, b.Pid)
	}
	if b.Cap.ID == 0 {
		return fmt.Errorf("%w: capability id 0", ErrInvalidReference)
	}
	if !b.Cap.Type.Valid() {
		return fmt.Errorf("%w: object type %d", ErrInvalidReference, b.Cap.Type)
	}
	if b.Cap.Type == abi.ObjectEndpoint {
		if _, ok := s.Endpoints[abi.EndpointID(b.Cap.Object)]; !ok {
			return fmt.Errorf("%w: endpoint %d", ErrInvalidReference, b.Cap.Object)
		}
	}
	if err := sp.InsertAt(b.Slot, b.Cap); err != nil {
		return fmt.Errorf("%w: slot %d of pid %d", ErrDuplicateEntity, b.Slot, b.Pid)
	}
	if uint64(b.Cap.ID) >= s.NextCapID {
		s.NextCapID = uint64(b.Cap.ID) + 1
	}
	return nil
}

func (s *State) applyCapRemoved(b commit.CapRemoved) error {
	sp, ok := s.Caps.Space(b.Pid)
	if !ok {
		return fmt.Errorf("%w: pid %d", ErrInvalidReference, b.Pid)
	}
	held, ok := sp.Get(b.Slot)
	if !ok {
		return fmt.Errorf("%w: slot %d of pid %d empty", ErrInvalidReference, b.Slot, b.Pid)
	}
	if held.ID != b.CapID {
		return fmt.Errorf("%w: slot %d holds cap %d, commit names %d",
			ErrInvalidReference, b.Slot, held.ID, b.CapID)
	}
	sp.Remove(b.Slot)
	return nil
}

func (s *State) applyMessageSent(b commit.MessageSent) error {
	ep, ok := s.Endpoints[b.Endpoint]
	if !ok {
		return fmt.Errorf("%w: endpoint %d", ErrInvalidReference, b.Endpoint)
	}
	if ep.Owner != b.To {
		return fmt.Errorf("%w: endpoint %d owned by %d, commit names %d",
			ErrInvalidReference, b.Endpoint, ep.Owner, b.To)
	}
	if b.From != abi.KernelPid {
		if _, ok := s.Procs[b.From]; !ok {
			return fmt.Errorf("%w: sender pid %d", ErrInvalidReference, b.From)
		}
	}
	ep.Sent++
	ep.Bytes += uint64(b.Size)
	return nil
}

// scrubEndpointCaps removes every capability referring to the given
// endpoints from all spaces, in deterministic order.
func (s *State) scrubEndpointCaps(eps []abi.EndpointID) {
	for _, ref := range s.EndpointCapHolders(eps) {
		if sp, ok := s.Caps.Space(ref.Pid); ok {
			sp.Remove(ref.Slot)
		}
	}
}
