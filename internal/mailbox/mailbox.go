// Package mailbox implements the syscall transport between a process
// execution unit and the gateway.
//
// Each process owns exactly one mailbox, the only state shared between
// the two sides. The mailbox mirrors the fixed word layout in the abi
// package: a status word, the syscall number, three argument words, a
// result word, and a bounded data area. Ownership alternates with the
// status word: the process writes while Idle and flips to Pending, the
// gateway writes while Pending and flips to Ready, the process reads
// while Ready and flips back to Idle. Neither side touches a mailbox
// outside its phase.
//
// The process side blocks between Pending and Ready. The wait is
// timeout-guarded and re-checks the status word on every wake, so a
// spurious or stale wake while the request is still Pending puts the
// waiter back to sleep instead of returning early.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

var (
	// ErrBusy means Post was called while a request is already in
	// flight. One mailbox carries one syscall at a time.
	ErrBusy = errors.New("mailbox: request already in flight")

	// ErrTimeout means a single Wait round expired. The request, once
	// Pending, is still owed a result; callers re-arm and wait again.
	ErrTimeout = errors.New("mailbox: wait timed out")

	// ErrClosed means the mailbox was unbound while waiting, which
	// happens when the process is killed.
	ErrClosed = errors.New("mailbox: closed")

	// ErrTooLarge means the request payload exceeds the data area.
	ErrTooLarge = errors.New("mailbox: payload exceeds data area")
)

// Request is the gateway-side snapshot of a pending syscall. Data is a
// copy; holding it after Complete is safe.
type Request struct {
	Pid   abi.Pid
	Sysno abi.Sysno
	Args  [3]uint64
	Data  []byte
}

// Result is the process-side view of a completed syscall.
type Result struct {
	Code abi.ResultCode
	Data []byte
}

// Mailbox is one process's syscall slot.
type Mailbox struct {
	pid    abi.Pid
	status atomic.Uint32

	mu      sync.Mutex
	sysno   abi.Sysno
	args    [3]uint64
	result  abi.ResultCode
	dataLen uint32
	data    [abi.DataCapacity]byte
	closed  bool

	// wake signals a status change to the blocked process. Buffered
	// size 1: multiple rings coalesce, the waiter re-checks status.
	wake chan struct{}

	// doorbell tells the gateway's loop that a request went Pending.
	// Set by the pool at bind time.
	doorbell func()
}

func newMailbox(pid abi.Pid, doorbell func()) *Mailbox {
	return &Mailbox{
		pid:      pid,
		wake:     make(chan struct{}, 1),
		doorbell: doorbell,
	}
}

// Pid returns the trusted binding identity of this mailbox. The
// gateway reads the sender from here, never from request bytes.
func (m *Mailbox) Pid() abi.Pid {
	return m.pid
}

// Status returns the current status word.
func (m *Mailbox) Status() abi.Status {
	return abi.Status(m.status.Load())
}

// Post writes a request into the mailbox and flips it Pending. The
// mailbox must be Idle; a process cannot have two syscalls in flight.
func (m *Mailbox) Post(sysno abi.Sysno, args [3]uint64, data []byte) error {
	if len(data) > abi.DataCapacity {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if abi.Status(m.status.Load()) != abi.StatusIdle {
		m.mu.Unlock()
		return ErrBusy
	}
	m.sysno = sysno
	m.args = args
	m.dataLen = uint32(len(data))
	copy(m.data[:], data)
	m.status.Store(uint32(abi.StatusPending))
	m.mu.Unlock()

	if m.doorbell != nil {
		m.doorbell()
	}
	return nil
}

// Wait blocks until the mailbox leaves Pending, one timeout round at
// a time. It returns nil once the status is Ready, ErrTimeout when the
// round expires with the request still in flight, and ErrClosed or the
// context error when the process is being torn down. A wake with the
// status still Pending is spurious and goes back to sleep.
func (m *Mailbox) Wait(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		switch m.Status() {
		case abi.StatusReady:
			return nil
		case abi.StatusIdle:
			// Nothing in flight; completed and collected elsewhere.
			return nil
		}
		if m.isClosed() {
			return ErrClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if m.Status() == abi.StatusReady {
				return nil
			}
			return ErrTimeout
		case <-m.wake:
			// Re-check the status word; the ring may be stale.
		}
	}
}

// TryCollect consumes a Ready result, flipping the mailbox back to
// Idle. It returns false while the request is still in flight.
func (m *Mailbox) TryCollect() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if abi.Status(m.status.Load()) != abi.StatusReady {
		return Result{}, false
	}
	res := Result{
		Code: m.result,
		Data: append([]byte(nil), m.data[:m.dataLen]...),
	}
	m.dataLen = 0
	m.status.Store(uint32(abi.StatusIdle))
	return res, true
}

// Invoke runs one full syscall round trip: post the request, wait in
// timeout-guarded rounds, collect the result. A timeout only re-arms
// the wait; once Pending is set the process is owed a result and there
// is no cancellation short of teardown.
func (m *Mailbox) Invoke(ctx context.Context, sysno abi.Sysno, args [3]uint64, data []byte) (Result, error) {
	if err := m.Post(sysno, args, data); err != nil {
		return Result{}, err
	}
	for {
		if res, ok := m.TryCollect(); ok {
			return res, nil
		}
		if err := m.Wait(ctx, 10*time.Millisecond); err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			return Result{}, err
		}
	}
}

// PendingRequest snapshots the request if one is Pending. The gateway
// polls this; a false return means the mailbox is in another phase or
// already closed. Closed boxes never surface work: a request posted by
// a process that has since been killed must not execute.
func (m *Mailbox) PendingRequest() (Request, bool) {
	if abi.Status(m.status.Load()) != abi.StatusPending {
		return Request{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || abi.Status(m.status.Load()) != abi.StatusPending {
		return Request{}, false
	}
	return Request{
		Pid:   m.pid,
		Sysno: m.sysno,
		Args:  m.args,
		Data:  append([]byte(nil), m.data[:m.dataLen]...),
	}, true
}

// Complete writes the result of a Pending request, flips the mailbox
// Ready, and wakes the waiter. It reports false if the mailbox was not
// Pending (closed mid-flight, or a gateway sequencing bug).
func (m *Mailbox) Complete(code abi.ResultCode, data []byte) bool {
	if len(data) > abi.DataCapacity {
		panic(fmt.Sprintf("mailbox: result payload %d bytes exceeds data area", len(data)))
	}

	m.mu.Lock()
	if m.closed || abi.Status(m.status.Load()) != abi.StatusPending {
		m.mu.Unlock()
		return false
	}
	m.result = code
	m.dataLen = uint32(len(data))
	copy(m.data[:], data)
	m.status.Store(uint32(abi.StatusReady))
	m.ringLocked()
	m.mu.Unlock()
	return true
}

// Close marks the mailbox dead and wakes any waiter. Called by the
// pool when the process is unbound.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.wake)
}

func (m *Mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox) ringLocked() {
	if m.closed {
		return
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
