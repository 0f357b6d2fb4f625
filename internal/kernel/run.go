package kernel

import (
	"context"
	"log/slog"
)

// Run drives the gateway until the context is cancelled: service every
// pending mailbox, then sleep on the doorbell. All kernel mutation
// happens on this goroutine while it holds the kernel mutex.
func (k *Kernel) Run(ctx context.Context) error {
	slog.Info("gateway running")
	for {
		if n := k.PollOnce(); n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			slog.Info("gateway stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-k.pool.Bell():
		}
	}
}

// PollOnce services every mailbox holding a pending request, in bind
// order, and reports how many requests it completed. The scheduling
// tick of the live system; the test harness calls it directly to step
// the kernel deterministically.
func (k *Kernel) PollOnce() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for _, box := range k.pool.Pending() {
		req, ok := box.PendingRequest()
		if !ok {
			// Raced with a teardown; the box closed after the
			// pending scan.
			continue
		}
		code, data := k.dispatch(req)
		box.Complete(code, data)
		n++
		k.flushDeadBoxes()
	}
	return n
}

// flushDeadBoxes unbinds mailboxes whose processes exited inside the
// request just completed. Deferred past Complete so the exiting
// process still collects its final result.
func (k *Kernel) flushDeadBoxes() {
	for _, pid := range k.deadBoxes {
		k.pool.Unbind(pid)
	}
	k.deadBoxes = k.deadBoxes[:0]
}
