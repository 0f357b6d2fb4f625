// Package testutil provides deterministic substitutes for the
// platform surfaces the kernel consumes: a manual clock, a scripted
// random source, and a platform whose units never run on their own.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/hal"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// ManualClock is a wall clock tests advance by hand. The same scenario
// always observes the same timestamps.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock parked at a fixed epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestPlatform is a hal.Platform whose spawned units do not run. The
// test (or scenario harness) owns every step: it posts syscalls on the
// unit's mailbox itself, so execution is single-threaded and the same
// script always produces the same kernel history.
//
// Console output is captured per pid, random bytes come from a fixed
// counter, and time comes from a ManualClock.
type TestPlatform struct {
	mu      sync.Mutex
	clock   *ManualClock
	known   map[string]bool
	spawned []SpawnRecord
	console map[abi.Pid][]byte
	randSeq byte
}

// SpawnRecord remembers one spawn the kernel asked for.
type SpawnRecord struct {
	Name string
	Pid  abi.Pid
	Box  *mailbox.Mailbox
}

// NewTestPlatform creates a platform that accepts the given program
// names. With no names, every spawn is accepted.
func NewTestPlatform(programs ...string) *TestPlatform {
	known := make(map[string]bool, len(programs))
	for _, name := range programs {
		known[name] = true
	}
	return &TestPlatform{
		clock:   NewManualClock(),
		known:   known,
		console: make(map[abi.Pid][]byte),
	}
}

// Clock returns the platform's manual clock for tests to advance.
func (p *TestPlatform) Clock() *ManualClock {
	return p.clock
}

// Spawn records the request and returns an inert unit.
func (p *TestPlatform) Spawn(ctx context.Context, name string, pid abi.Pid, box *mailbox.Mailbox) (hal.Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.known) > 0 && !p.known[name] {
		return nil, hal.NewSpawnError(name, fmt.Errorf("not in scripted program set"))
	}
	p.spawned = append(p.spawned, SpawnRecord{Name: name, Pid: pid, Box: box})
	return &inertUnit{done: make(chan struct{})}, nil
}

// Spawned returns every spawn recorded so far, in order.
func (p *TestPlatform) Spawned() []SpawnRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SpawnRecord, len(p.spawned))
	copy(out, p.spawned)
	return out
}

// Now returns the manual clock's time.
func (p *TestPlatform) Now() time.Time {
	return p.clock.Now()
}

// Monotonic returns the manual clock's offset from its epoch.
func (p *TestPlatform) Monotonic() time.Duration {
	return p.clock.Now().Sub(time.Unix(1_700_000_000, 0).UTC())
}

// Rand fills b with a deterministic counter sequence.
func (p *TestPlatform) Rand(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range b {
		b[i] = p.randSeq
		p.randSeq++
	}
	return nil
}

// ConsoleWrite captures output for later assertion.
func (p *TestPlatform) ConsoleWrite(pid abi.Pid, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console[pid] = append(p.console[pid], data...)
	return nil
}

// Console returns everything a pid has written.
func (p *TestPlatform) Console(pid abi.Pid) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.console[pid])
}

type inertUnit struct {
	once sync.Once
	done chan struct{}
}

func (u *inertUnit) Stop() {
	u.once.Do(func() { close(u.done) })
}

func (u *inertUnit) Done() <-chan struct{} {
	return u.done
}
