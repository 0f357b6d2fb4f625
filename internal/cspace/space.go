package cspace

import (
	"fmt"
	"slices"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Space is one process's capability table. It is owned by the kernel's
// single writer context; nothing here locks.
type Space struct {
	slots map[abi.Slot]abi.Capability
	next  abi.Slot
}

// NewSpace returns an empty capability space. The first allocated slot
// is SlotInput (0), conventionally the process's own input endpoint.
func NewSpace() *Space {
	return &Space{slots: make(map[abi.Slot]abi.Capability)}
}

// NextFree returns the slot the next insert will land in, without
// allocating it. The kernel records this slot in the commit before the
// insert happens, so replay lands the capability in the same place.
func (s *Space) NextFree() abi.Slot {
	return s.next
}

// InsertAt places a capability in an explicit slot. It fails if the
// slot is occupied. The allocation cursor never moves backwards, so
// removed slots stay dead.
func (s *Space) InsertAt(slot abi.Slot, c abi.Capability) error {
	if _, occupied := s.slots[slot]; occupied {
		return fmt.Errorf("slot %d occupied", slot)
	}
	s.slots[slot] = c
	if slot >= s.next {
		s.next = slot + 1
	}
	return nil
}

// Get returns the capability in slot, if any.
func (s *Space) Get(slot abi.Slot) (abi.Capability, bool) {
	c, ok := s.slots[slot]
	return c, ok
}

// Remove deletes a slot and returns what it held.
func (s *Space) Remove(slot abi.Slot) (abi.Capability, bool) {
	c, ok := s.slots[slot]
	if ok {
		delete(s.slots, slot)
	}
	return c, ok
}

// Len reports the number of live capabilities.
func (s *Space) Len() int {
	return len(s.slots)
}

// Slots returns the occupied slots in ascending order for deterministic
// iteration.
func (s *Space) Slots() []abi.Slot {
	out := make([]abi.Slot, 0, len(s.slots))
	for slot := range s.slots {
		out = append(out, slot)
	}
	slices.Sort(out)
	return out
}
