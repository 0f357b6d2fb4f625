// Package ipc implements the endpoint layer: owned FIFO message queues
// that capability-holding processes send into and owners receive from.
// Authorization lives in the gateway; this package enforces structure
// (ownership, per-endpoint FIFO) and nothing else.
package ipc

import "github.com/cypher-asi/zero-os-sub006/internal/abi"

// Message is one queued IPC datagram. It is immutable once enqueued:
// the queue owns the Data slice and hands it back only on dequeue.
// Capability transfer is never message content; the gateway moves
// capabilities between tables as a delivery side effect.
type Message struct {
	From abi.Pid
	Tag  uint32
	Data []byte
}

// Size reports the payload length in bytes, the only thing about the
// payload that is ever committed or audited.
func (m Message) Size() int {
	return len(m.Data)
}
