// Package audit keeps the record of syscall traffic through the
// gateway. Every syscall produces a request event before execution and
// a response event after, stitched together by the request's event id.
// The log holds metadata only: syscall numbers, argument words, and
// result codes, never message payloads.
package audit

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Clock allocates event identifiers.
//
// All events are stamped with a strictly increasing id from this
// clock, so event order never depends on wall time and a restored log
// resumes numbering where it stopped.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the gateway's single-writer design means only one goroutine
// typically calls Next.
type Clock struct {
	id atomic.Uint64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resumed past a known position. Used when
// restoring a persisted log.
func NewClockAt(last abi.EventID) *Clock {
	c := &Clock{}
	c.id.Store(uint64(last))
	return c
}

// Next returns the next event id and advances the clock.
func (c *Clock) Next() abi.EventID {
	return abi.EventID(c.id.Add(1))
}

// Current returns the last id handed out without advancing.
func (c *Clock) Current() abi.EventID {
	return abi.EventID(c.id.Load())
}

// Kind distinguishes request events from response events.
type Kind int

const (
	KindRequest Kind = iota + 1
	KindResponse
)

// String returns the kind as a string.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Event is one audit record. Request events carry the syscall number
// and argument words; response events carry the id of the request they
// answer, the result code, and an optional detail string.
type Event struct {
	ID   abi.EventID
	Pid  abi.Pid
	Kind Kind

	Sysno abi.Sysno
	Args  [4]uint64

	RequestID abi.EventID
	Result    abi.ResultCode
	Detail    string
}

// Log is a capacity-bounded, append-only event buffer. When the bound
// is exceeded the oldest events are dropped; event ids keep counting,
// so a trimmed log still shows where it starts.
type Log struct {
	mu       sync.Mutex
	clock    *Clock
	capacity int
	events   []Event
}

// NewLog creates an empty log. A capacity of zero or less means
// unbounded.
func NewLog(capacity int) *Log {
	return &Log{
		clock:    NewClock(),
		capacity: capacity,
		events:   make([]Event, 0, 64),
	}
}

// Restore rebuilds a log from persisted events, which must carry
// strictly increasing ids. The clock resumes after the last id.
func Restore(capacity int, events []Event) (*Log, error) {
	var last abi.EventID
	for i, e := range events {
		if e.ID <= last {
			return nil, fmt.Errorf("restore audit log: event %d id %d not after %d", i, e.ID, last)
		}
		last = e.ID
	}
	l := &Log{
		clock:    NewClockAt(last),
		capacity: capacity,
		events:   append(make([]Event, 0, max(len(events), 64)), events...),
	}
	l.trimLocked()
	return l, nil
}

// Request records a syscall arriving at the gateway and returns the
// event id the matching response must reference.
func (l *Log) Request(pid abi.Pid, sysno abi.Sysno, args [4]uint64) abi.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.clock.Next()
	l.events = append(l.events, Event{
		ID:    id,
		Pid:   pid,
		Kind:  KindRequest,
		Sysno: sysno,
		Args:  args,
	})
	l.trimLocked()
	return id
}

// Response records the outcome of a previously logged request.
func (l *Log) Response(pid abi.Pid, req abi.EventID, result abi.ResultCode, detail string) abi.EventID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.clock.Next()
	l.events = append(l.events, Event{
		ID:        id,
		Pid:       pid,
		Kind:      KindResponse,
		RequestID: req,
		Result:    result,
		Detail:    detail,
	})
	l.trimLocked()
	return id
}

// Events returns a copy of the buffered events, oldest first.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Tail returns a copy of the newest n events, oldest first.
func (l *Log) Tail(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Find returns the buffered event with the given id.
func (l *Log) Find(id abi.EventID) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// Len returns the number of buffered events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// LastID returns the most recently allocated event id.
func (l *Log) LastID() abi.EventID {
	return l.clock.Current()
}

func (l *Log) trimLocked() {
	if l.capacity <= 0 || len(l.events) <= l.capacity {
		return
	}
	drop := len(l.events) - l.capacity
	l.events = append(l.events[:0], l.events[drop:]...)
}
