package hal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// Program is the body of a process on the host platform. It talks to
// the kernel exclusively through the syscall client and returns when
// the process is done or its context is cancelled.
type Program func(ctx context.Context, sys *mailbox.Client) error

// HostPlatform runs execution units as goroutines. Programs are
// registered by name before boot; console output goes to a writer.
type HostPlatform struct {
	mu       sync.Mutex
	programs map[string]Program
	console  io.Writer
	start    time.Time
}

// HostOption configures a HostPlatform.
type HostOption func(*HostPlatform)

// WithConsole redirects console output. Default is stdout.
func WithConsole(w io.Writer) HostOption {
	return func(h *HostPlatform) {
		h.console = w
	}
}

// NewHostPlatform creates a platform with no programs registered.
func NewHostPlatform(opts ...HostOption) *HostPlatform {
	h := &HostPlatform{
		programs: make(map[string]Program),
		console:  os.Stdout,
		start:    time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register makes a program spawnable under the given name.
// Re-registering a name replaces the previous program.
func (h *HostPlatform) Register(name string, p Program) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.programs[name] = p
}

// Spawn starts the named program in its own goroutine.
func (h *HostPlatform) Spawn(ctx context.Context, name string, pid abi.Pid, box *mailbox.Mailbox) (Unit, error) {
	h.mu.Lock()
	prog, ok := h.programs[name]
	h.mu.Unlock()
	if !ok {
		return nil, NewSpawnError(name, fmt.Errorf("not registered"))
	}

	unitCtx, cancel := context.WithCancel(ctx)
	u := &hostUnit{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(u.done)
		err := prog(unitCtx, mailbox.NewClient(box))
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, mailbox.ErrClosed):
			// Normal teardown.
		default:
			slog.Error("program failed", "program", name, "pid", pid, "error", err)
		}
	}()

	slog.Debug("unit spawned", "program", name, "pid", pid)
	return u, nil
}

// Now returns wall-clock time.
func (h *HostPlatform) Now() time.Time {
	return time.Now()
}

// Monotonic returns time elapsed since the platform was created.
func (h *HostPlatform) Monotonic() time.Duration {
	return time.Since(h.start)
}

// Rand fills b from the host's CSPRNG.
func (h *HostPlatform) Rand(b []byte) error {
	if _, err := rand.Read(b); err != nil {
		return NewIOError("rand", err)
	}
	return nil
}

// ConsoleWrite writes process output to the console writer.
func (h *HostPlatform) ConsoleWrite(pid abi.Pid, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.console.Write(data); err != nil {
		return NewIOError(fmt.Sprintf("console write for pid %d", pid), err)
	}
	return nil
}

type hostUnit struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (u *hostUnit) Stop() {
	u.cancel()
	<-u.done
}

func (u *hostUnit) Done() <-chan struct{} {
	return u.done
}
