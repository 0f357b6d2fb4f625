package kernel

import (
	"fmt"
	"log/slog"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/ipc"
)

// Deliver injects a message into a process's input endpoint on behalf
// of the trusted host: console input, revocation notices. This is the
// one path that skips the capability check, and nothing reachable
// from a mailbox goes through it. The delivery is still committed and
// counted like any other message, attributed to the kernel.
func (k *Kernel) Deliver(to abi.Pid, tag uint32, data []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.deliverLocked(to, tag, data)
}

// ConsoleInput delivers console bytes to a process's input endpoint.
func (k *Kernel) ConsoleInput(to abi.Pid, data []byte) error {
	return k.Deliver(to, abi.TagConsoleInput, data)
}

func (k *Kernel) deliverLocked(to abi.Pid, tag uint32, data []byte) error {
	if _, ok := k.st.Procs[to]; !ok {
		return NewProcessNotFound(to, "no such process")
	}
	in, ok := k.inputEndpoint(to)
	if !ok {
		return NewEndpointNotFound(to, fmt.Sprintf("pid %d owns no input endpoint", to))
	}
	ep, ok := k.eps.Get(in)
	if !ok {
		panic(fmt.Sprintf("kernel: endpoint registry out of sync: %d", in))
	}
	if len(data) > k.maxMsgSize {
		return fmt.Errorf("%w: %d bytes, limit %d", errTooLarge, len(data), k.maxMsgSize)
	}

	k.commitAndApply(commit.MessageSent{
		From:     abi.KernelPid,
		Endpoint: in,
		To:       to,
		Tag:      tag,
		Size:     uint32(len(data)),
		Caps:     0,
	})
	ep.Enqueue(ipc.Message{From: abi.KernelPid, Tag: tag, Data: append([]byte(nil), data...)})
	return nil
}

// deliverRevokeNote sends the one-shot revocation notification. Best
// effort: a holder without an input endpoint simply does not hear
// about the revocation, which is indistinguishable from not having
// polled yet.
func (k *Kernel) deliverRevokeNote(to abi.Pid, note abi.RevokeNote) {
	if err := k.deliverLocked(to, abi.TagCapRevoked, note.Encode()); err != nil {
		slog.Debug("revocation note dropped",
			"pid", to, "object", note.Type.String(), "reason", note.Reason.String(), "error", err)
	}
}
