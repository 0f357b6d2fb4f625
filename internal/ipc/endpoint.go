package ipc

import (
	"fmt"
	"slices"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Endpoint is an owned message queue. Only the owner may dequeue; the
// gateway checks write capabilities before anything is enqueued.
type Endpoint struct {
	ID    abi.EndpointID
	Owner abi.Pid
	q     fifo
}

// Enqueue appends a message in arrival order.
func (e *Endpoint) Enqueue(m Message) {
	e.q.enqueue(m)
}

// Dequeue pops the oldest message, if any.
func (e *Endpoint) Dequeue() (Message, bool) {
	return e.q.dequeue()
}

// Depth reports the number of queued messages.
func (e *Endpoint) Depth() int {
	return e.q.depth()
}

// Registry tracks the live endpoints and their queues. Queue contents
// are runtime-only state: replay reconstructs endpoint existence and
// delivery counters from commits, never the payloads.
type Registry struct {
	eps map[abi.EndpointID]*Endpoint
}

// NewRegistry returns an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{eps: make(map[abi.EndpointID]*Endpoint)}
}

// Create registers an endpoint under its kernel-assigned id.
func (r *Registry) Create(id abi.EndpointID, owner abi.Pid) (*Endpoint, error) {
	if _, exists := r.eps[id]; exists {
		return nil, fmt.Errorf("endpoint %d already exists", id)
	}
	e := &Endpoint{ID: id, Owner: owner}
	r.eps[id] = e
	return e, nil
}

// Destroy removes an endpoint and drops its queued messages.
func (r *Registry) Destroy(id abi.EndpointID) (*Endpoint, bool) {
	e, ok := r.eps[id]
	if ok {
		delete(r.eps, id)
	}
	return e, ok
}

// Get returns the endpoint with the given id.
func (r *Registry) Get(id abi.EndpointID) (*Endpoint, bool) {
	e, ok := r.eps[id]
	return e, ok
}

// OwnedBy lists the endpoints a process owns, ascending by id. Used at
// process teardown and in snapshots.
func (r *Registry) OwnedBy(pid abi.Pid) []abi.EndpointID {
	var out []abi.EndpointID
	for id, e := range r.eps {
		if e.Owner == pid {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// IDs lists all endpoint ids, ascending.
func (r *Registry) IDs() []abi.EndpointID {
	out := make([]abi.EndpointID, 0, len(r.eps))
	for id := range r.eps {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Len reports the number of live endpoints.
func (r *Registry) Len() int {
	return len(r.eps)
}
