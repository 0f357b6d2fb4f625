package cspace

import (
	"fmt"
	"slices"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Table holds every process's capability space.
type Table struct {
	spaces map[abi.Pid]*Space
}

// NewTable returns an empty arena.
func NewTable() *Table {
	return &Table{spaces: make(map[abi.Pid]*Space)}
}

// Create allocates an empty space for a new process.
func (t *Table) Create(pid abi.Pid) error {
	if _, exists := t.spaces[pid]; exists {
		return fmt.Errorf("cspace for pid %d already exists", pid)
	}
	t.spaces[pid] = NewSpace()
	return nil
}

// Drop removes a process's space at exit and returns it so the caller
// can account for the capabilities that vanished with it.
func (t *Table) Drop(pid abi.Pid) (*Space, bool) {
	s, ok := t.spaces[pid]
	if ok {
		delete(t.spaces, pid)
	}
	return s, ok
}

// Space returns the table for one process.
func (t *Table) Space(pid abi.Pid) (*Space, bool) {
	s, ok := t.spaces[pid]
	return s, ok
}

// Pids returns the processes with a space, ascending.
func (t *Table) Pids() []abi.Pid {
	out := make([]abi.Pid, 0, len(t.spaces))
	for pid := range t.spaces {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out
}

// Len reports the number of spaces.
func (t *Table) Len() int {
	return len(t.spaces)
}
