package mailbox

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/ipc"
)

// ResultError is a syscall failure surfaced by the kernel through the
// mailbox result word.
type ResultError struct {
	Sysno abi.Sysno
	Code  abi.ResultCode
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Sysno, e.Code)
}

// IsResult reports whether err carries the given kernel result code.
func IsResult(err error, code abi.ResultCode) bool {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// Client wraps a mailbox with one typed method per syscall. It encodes
// argument words and data-area payloads the way the gateway decodes
// them, so process code never touches the wire layout directly.
type Client struct {
	box *Mailbox
}

// NewClient wraps a bound mailbox.
func NewClient(box *Mailbox) *Client {
	return &Client{box: box}
}

// Pid returns the identity the mailbox was bound with.
func (c *Client) Pid() abi.Pid {
	return c.box.Pid()
}

func (c *Client) invoke(ctx context.Context, sysno abi.Sysno, args [3]uint64, data []byte) (Result, error) {
	res, err := c.box.Invoke(ctx, sysno, args, data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", sysno, err)
	}
	if res.Code.IsError() {
		return Result{}, &ResultError{Sysno: sysno, Code: res.Code}
	}
	return res, nil
}

// Grant copies the capability in slot to another process with rights
// attenuated by the intersection rule. Returns the slot the target
// received it in. Requires the grant bit.
func (c *Client) Grant(ctx context.Context, slot abi.Slot, to abi.Pid, rights abi.Rights) (abi.Slot, error) {
	res, err := c.invoke(ctx, abi.SysCapGrant, [3]uint64{uint64(slot), uint64(to), uint64(rights.Bits())}, nil)
	if err != nil {
		return 0, err
	}
	granted, err := abi.DecodeU64(res.Data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", abi.SysCapGrant, err)
	}
	return abi.Slot(granted), nil
}

// Revoke removes the capability in slot and delivers a revocation
// notification to this process's input endpoint.
func (c *Client) Revoke(ctx context.Context, slot abi.Slot) error {
	_, err := c.invoke(ctx, abi.SysCapRevoke, [3]uint64{uint64(slot)}, nil)
	return err
}

// Delete removes the capability in slot without notification.
func (c *Client) Delete(ctx context.Context, slot abi.Slot) error {
	_, err := c.invoke(ctx, abi.SysCapDelete, [3]uint64{uint64(slot)}, nil)
	return err
}

// Inspect returns the capability currently held in slot.
func (c *Client) Inspect(ctx context.Context, slot abi.Slot) (abi.Capability, error) {
	res, err := c.invoke(ctx, abi.SysCapInspect, [3]uint64{uint64(slot)}, nil)
	if err != nil {
		return abi.Capability{}, err
	}
	info, err := abi.DecodeCap(res.Data)
	if err != nil {
		return abi.Capability{}, fmt.Errorf("%s: %w", abi.SysCapInspect, err)
	}
	return info, nil
}

// Derive narrows the capability in slot into a fresh slot of this
// process's own space. No grant bit required.
func (c *Client) Derive(ctx context.Context, slot abi.Slot, rights abi.Rights) (abi.Slot, error) {
	res, err := c.invoke(ctx, abi.SysCapDerive, [3]uint64{uint64(slot), uint64(rights.Bits())}, nil)
	if err != nil {
		return 0, err
	}
	derived, err := abi.DecodeU64(res.Data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", abi.SysCapDerive, err)
	}
	return abi.Slot(derived), nil
}

// CreateEndpoint creates a new endpoint owned by this process and
// returns its id plus the slot holding the auto-granted full-rights
// capability.
func (c *Client) CreateEndpoint(ctx context.Context) (abi.EndpointID, abi.Slot, error) {
	res, err := c.invoke(ctx, abi.SysEndpointCreate, [3]uint64{}, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(res.Data) < 16 {
		return 0, 0, fmt.Errorf("%s: short response: %d bytes", abi.SysEndpointCreate, len(res.Data))
	}
	id, _ := abi.DecodeU64(res.Data[0:8])
	slot, _ := abi.DecodeU64(res.Data[8:16])
	return abi.EndpointID(id), abi.Slot(slot), nil
}

// Send enqueues a message on the endpoint behind slot. Requires the
// write bit.
func (c *Client) Send(ctx context.Context, slot abi.Slot, tag uint32, data []byte) error {
	_, err := c.invoke(ctx, abi.SysSend, [3]uint64{uint64(slot), uint64(tag)}, data)
	return err
}

// Receive dequeues the next message from the endpoint behind slot.
// Non-blocking: ok is false when the queue is empty. Requires the read
// bit and endpoint ownership.
func (c *Client) Receive(ctx context.Context, slot abi.Slot) (ipc.Message, bool, error) {
	res, err := c.invoke(ctx, abi.SysReceive, [3]uint64{uint64(slot)}, nil)
	if err != nil {
		return ipc.Message{}, false, err
	}
	if res.Code != abi.ResultMessage {
		return ipc.Message{}, false, nil
	}
	from, tag, payload, err := abi.DecodeMessage(res.Data)
	if err != nil {
		return ipc.Message{}, false, fmt.Errorf("%s: %w", abi.SysReceive, err)
	}
	return ipc.Message{From: from, Tag: tag, Data: payload}, true, nil
}

// Reply sends a response to a process that called this one. Valid once
// per received call, against the sender of that call.
func (c *Client) Reply(ctx context.Context, caller abi.Pid, tag uint32, data []byte) error {
	_, err := c.invoke(ctx, abi.SysReply, [3]uint64{uint64(caller), uint64(tag)}, data)
	return err
}

// SendWithCaps sends a message and atomically moves the named
// capabilities out of this process's space into the receiver's.
func (c *Client) SendWithCaps(ctx context.Context, slot abi.Slot, tag uint32, data []byte, caps []abi.Slot) error {
	payload := append(abi.EncodeSlots(caps), data...)
	_, err := c.invoke(ctx, abi.SysSendCaps,
		[3]uint64{uint64(slot), uint64(tag), uint64(len(caps))}, payload)
	return err
}

// Yield hands the processor to other goroutines without sleeping.
// There is no kernel-side blocking to lean on, so poll loops call this
// between probes of an empty endpoint.
func (c *Client) Yield() {
	runtime.Gosched()
}

// Call sends a request on the endpoint behind slot and polls this
// process's input endpoint until a message arrives, yielding between
// probes. The wait lives entirely on the caller's side; the kernel
// never blocks for it.
func (c *Client) Call(ctx context.Context, slot abi.Slot, tag uint32, data []byte) (ipc.Message, error) {
	if err := c.Send(ctx, slot, tag, data); err != nil {
		return ipc.Message{}, err
	}
	for {
		msg, ok, err := c.Receive(ctx, abi.SlotInput)
		if err != nil {
			return ipc.Message{}, err
		}
		if ok {
			return msg, nil
		}
		c.Yield()
		select {
		case <-ctx.Done():
			return ipc.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Child describes a process this one spawned: its pid, the slot
// holding the process capability on it, and the slot holding the
// write capability on its input endpoint.
type Child struct {
	Pid   abi.Pid
	Proc  abi.Slot
	Input abi.Slot
}

// Spawn creates a child process running the named program. The slot
// must hold a process-table capability with the write bit. The Input
// slot of the returned Child is the parent's way in: send there and
// the child replies through the right minted when it receives.
func (c *Client) Spawn(ctx context.Context, slot abi.Slot, name string) (Child, error) {
	res, err := c.invoke(ctx, abi.SysSpawn, [3]uint64{uint64(slot)}, []byte(name))
	if err != nil {
		return Child{}, err
	}
	if len(res.Data) < 24 {
		return Child{}, fmt.Errorf("%s: short response: %d bytes", abi.SysSpawn, len(res.Data))
	}
	pid, _ := abi.DecodeU64(res.Data[0:8])
	proc, _ := abi.DecodeU64(res.Data[8:16])
	input, _ := abi.DecodeU64(res.Data[16:24])
	return Child{Pid: abi.Pid(pid), Proc: abi.Slot(proc), Input: abi.Slot(input)}, nil
}

// Kill terminates the process behind the capability in slot. Requires
// a process capability with the write bit.
func (c *Client) Kill(ctx context.Context, slot abi.Slot) error {
	_, err := c.invoke(ctx, abi.SysKill, [3]uint64{uint64(slot)}, nil)
	return err
}

// Exit terminates this process with the given code. The kernel tears
// the mailbox down afterwards, so an ErrClosed from the collect side
// is normal here and swallowed.
func (c *Client) Exit(ctx context.Context, code int32) error {
	_, err := c.invoke(ctx, abi.SysExit, [3]uint64{uint64(uint32(code))}, nil)
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// ConsoleWrite writes bytes to the console behind the capability in
// slot. Requires the write bit.
func (c *Client) ConsoleWrite(ctx context.Context, slot abi.Slot, data []byte) error {
	_, err := c.invoke(ctx, abi.SysConsoleWrite, [3]uint64{uint64(slot)}, data)
	return err
}
