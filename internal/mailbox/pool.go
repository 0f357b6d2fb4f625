package mailbox

import (
	"fmt"
	"sync"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Pool holds every bound mailbox and the doorbell the gateway's loop
// parks on. Mailboxes are serviced in bind order on each poll tick, so
// scheduling is deterministic for a given spawn history.
type Pool struct {
	mu    sync.Mutex
	boxes map[abi.Pid]*Mailbox
	order []abi.Pid

	// bell coalesces doorbell rings from all mailboxes (buffered,
	// size 1). The gateway selects on it instead of busy-polling.
	bell chan struct{}
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		boxes: make(map[abi.Pid]*Mailbox),
		bell:  make(chan struct{}, 1),
	}
}

// Bind creates the mailbox for a new process. Binding an already
// bound pid is an error.
func (p *Pool) Bind(pid abi.Pid) (*Mailbox, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.boxes[pid]; exists {
		return nil, fmt.Errorf("mailbox for pid %d already bound", pid)
	}
	m := newMailbox(pid, p.ring)
	p.boxes[pid] = m
	p.order = append(p.order, pid)
	return m, nil
}

// Unbind removes and closes a process's mailbox, waking any blocked
// waiter with ErrClosed.
func (p *Pool) Unbind(pid abi.Pid) {
	p.mu.Lock()
	m, ok := p.boxes[pid]
	if ok {
		delete(p.boxes, pid)
		for i, candidate := range p.order {
			if candidate == pid {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if ok {
		m.Close()
	}
}

// Get returns the mailbox bound to pid.
func (p *Pool) Get(pid abi.Pid) (*Mailbox, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.boxes[pid]
	return m, ok
}

// Pending returns the mailboxes with a request in flight, in bind
// order. The gateway drains this list once per tick.
func (p *Pool) Pending() []*Mailbox {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*Mailbox
	for _, pid := range p.order {
		m := p.boxes[pid]
		if m.Status() == abi.StatusPending {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of bound mailboxes.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.boxes)
}

// Bell returns the channel that signals when some mailbox may have
// gone Pending. Rings coalesce; receivers re-scan with Pending.
func (p *Pool) Bell() <-chan struct{} {
	return p.bell
}

func (p *Pool) ring() {
	select {
	case p.bell <- struct{}{}:
	default:
	}
}
