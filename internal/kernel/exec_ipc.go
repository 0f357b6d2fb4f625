package kernel

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/ipc"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// execEndpointCreate allocates an endpoint owned by the caller and
// auto-grants the full-rights capability on it. Result: endpoint id
// then capability slot, two u64s.
func (k *Kernel) execEndpointCreate(req mailbox.Request) (abi.ResultCode, []byte, error) {
	id := abi.EndpointID(k.st.NextEndpoint)
	k.commitAndApply(commit.EndpointCreated{Endpoint: id, Owner: req.Pid})
	if _, err := k.eps.Create(id, req.Pid); err != nil {
		panic(fmt.Sprintf("kernel: endpoint registry out of sync: %v", err))
	}
	slot := k.insertCap(req.Pid, abi.Capability{
		Type:   abi.ObjectEndpoint,
		Object: uint64(id),
		Rights: abi.RightsAll,
	})
	out := append(abi.EncodeU64(uint64(id)), abi.EncodeU64(uint64(slot))...)
	return abi.ResultOK, out, nil
}

// execSend enqueues a message onto the endpoint named by a
// write-capable capability.
func (k *Kernel) execSend(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	tag := uint32(req.Args[1])

	c, err := k.capFor(req.Pid, slot, abi.ObjectEndpoint, abi.Rights{Write: true})
	if err != nil {
		return 0, nil, err
	}
	if err := k.checkSendPolicy(tag, len(req.Data)); err != nil {
		return 0, nil, err
	}
	if _, err := k.sendToEndpoint(req.Pid, abi.EndpointID(c.Object), tag, req.Data, 0); err != nil {
		return 0, nil, err
	}
	return abi.ResultOK, nil, nil
}

// execReceive dequeues the oldest message from an endpoint the caller
// owns. Non-blocking and commit-free: an empty queue is an ordinary OK
// result the caller polls past, and dequeuing changes no
// replay-relevant state.
//
// Receiving also mints the sender's one-shot reply right: the caller
// may now reply to that sender once without holding a capability on
// its input endpoint.
func (k *Kernel) execReceive(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	c, err := k.capFor(req.Pid, slot, abi.ObjectEndpoint, abi.Rights{Read: true})
	if err != nil {
		return 0, nil, err
	}
	id := abi.EndpointID(c.Object)
	sep, ok := k.st.Endpoints[id]
	if !ok {
		return 0, nil, NewEndpointNotFound(req.Pid, fmt.Sprintf("endpoint %d", id))
	}
	if sep.Owner != req.Pid {
		return 0, nil, NewPermissionDenied(req.Pid, slot, "not the endpoint owner")
	}

	ep, ok := k.eps.Get(id)
	if !ok {
		panic(fmt.Sprintf("kernel: endpoint registry out of sync: %d", id))
	}
	m, ok := ep.Dequeue()
	if !ok {
		return abi.ResultOK, nil, nil
	}
	if m.From != abi.KernelPid {
		k.mintReplyRight(req.Pid, m.From)
	}
	return abi.ResultMessage, abi.EncodeMessage(m.From, m.Tag, m.Data), nil
}

// execReply delivers to the input endpoint of a process that called
// the replier. Authorization is the one-shot reply right minted when
// the call was received, consumed only after the send goes through.
func (k *Kernel) execReply(req mailbox.Request) (abi.ResultCode, []byte, error) {
	caller := abi.Pid(req.Args[0])
	tag := uint32(req.Args[1])

	if err := k.checkSendPolicy(tag, len(req.Data)); err != nil {
		return 0, nil, err
	}
	if _, ok := k.st.Procs[caller]; !ok {
		return 0, nil, NewProcessNotFound(req.Pid, fmt.Sprintf("reply target pid %d", caller))
	}
	in, ok := k.inputEndpoint(caller)
	if !ok {
		return 0, nil, NewEndpointNotFound(req.Pid, fmt.Sprintf("pid %d owns no input endpoint", caller))
	}
	if !k.hasReplyRight(req.Pid, caller) {
		return 0, nil, NewPermissionDenied(req.Pid, 0, fmt.Sprintf("no outstanding call from pid %d", caller))
	}
	if _, err := k.sendToEndpoint(req.Pid, in, tag, req.Data, 0); err != nil {
		return 0, nil, err
	}
	k.consumeReplyRight(req.Pid, caller)
	return abi.ResultOK, nil, nil
}

// execSendCaps sends a message and atomically moves the named
// capabilities out of the sender's space into the receiver's. Every
// moved slot is validated before anything commits: the move happens
// entirely or not at all.
func (k *Kernel) execSendCaps(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	tag := uint32(req.Args[1])
	n := int(req.Args[2])

	c, err := k.capFor(req.Pid, slot, abi.ObjectEndpoint, abi.Rights{Write: true})
	if err != nil {
		return 0, nil, err
	}
	if n < 0 || n > abi.DataCapacity/4 {
		return 0, nil, fmt.Errorf("%w: capability count %d", errInvalidArgument, n)
	}
	moved, err := abi.DecodeSlots(req.Data, n)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errInvalidArgument, err)
	}
	payload := req.Data[4*n:]
	if err := k.checkSendPolicy(tag, len(payload)); err != nil {
		return 0, nil, err
	}

	seen := make(map[abi.Slot]bool, len(moved))
	caps := make([]abi.Capability, len(moved))
	for i, ms := range moved {
		if seen[ms] {
			return 0, nil, fmt.Errorf("%w: slot %d moved twice", errInvalidArgument, ms)
		}
		seen[ms] = true
		mc, err := k.capAt(req.Pid, ms)
		if err != nil {
			return 0, nil, err
		}
		caps[i] = mc
	}

	owner, err := k.sendToEndpoint(req.Pid, abi.EndpointID(c.Object), tag, payload, uint32(n))
	if err != nil {
		return 0, nil, err
	}

	// Each capability keeps its identity and rights across the move:
	// attenuation happened upstream and is preserved, never re-derived.
	dsp, ok := k.st.Caps.Space(owner)
	if !ok {
		panic(fmt.Sprintf("kernel: no capability space for endpoint owner %d", owner))
	}
	for i, ms := range moved {
		k.commitAndApply(commit.CapRemoved{Pid: req.Pid, Slot: ms, CapID: caps[i].ID, Cause: commit.CauseMoved})
		k.commitAndApply(commit.CapInserted{Pid: owner, Slot: dsp.NextFree(), Cap: caps[i]})
	}
	return abi.ResultOK, nil, nil
}

// checkSendPolicy applies the gateway transmit policy: payload size
// bound and the reserved kernel tag range. Policy, not invariant; the
// queues themselves never block.
func (k *Kernel) checkSendPolicy(tag uint32, size int) error {
	if abi.IsKernelTag(tag) {
		return fmt.Errorf("%w: tag 0x%x is in the reserved kernel range", errInvalidArgument, tag)
	}
	if size > k.maxMsgSize {
		return fmt.Errorf("%w: %d bytes, limit %d", errTooLarge, size, k.maxMsgSize)
	}
	return nil
}

// sendToEndpoint commits the delivery metadata and enqueues the
// message, returning the recipient. Authorization is the caller's
// business; backpressure is checked here so every send path shares
// it.
func (k *Kernel) sendToEndpoint(from abi.Pid, id abi.EndpointID, tag uint32, data []byte, caps uint32) (abi.Pid, error) {
	sep, ok := k.st.Endpoints[id]
	if !ok {
		return 0, NewEndpointNotFound(from, fmt.Sprintf("endpoint %d", id))
	}
	ep, ok := k.eps.Get(id)
	if !ok {
		panic(fmt.Sprintf("kernel: endpoint registry out of sync: %d", id))
	}
	if k.maxQueueDepth > 0 && ep.Depth() >= k.maxQueueDepth {
		return 0, fmt.Errorf("%w: endpoint %d at depth %d", errQueueFull, id, ep.Depth())
	}

	k.commitAndApply(commit.MessageSent{
		From:     from,
		Endpoint: id,
		To:       sep.Owner,
		Tag:      tag,
		Size:     uint32(len(data)),
		Caps:     caps,
	})
	ep.Enqueue(ipc.Message{From: from, Tag: tag, Data: data})
	return sep.Owner, nil
}

func (k *Kernel) mintReplyRight(server, caller abi.Pid) {
	m := k.replyRights[server]
	if m == nil {
		m = make(map[abi.Pid]int)
		k.replyRights[server] = m
	}
	m[caller]++
}

func (k *Kernel) hasReplyRight(server, caller abi.Pid) bool {
	return k.replyRights[server][caller] > 0
}

func (k *Kernel) consumeReplyRight(server, caller abi.Pid) {
	m := k.replyRights[server]
	if m == nil {
		return
	}
	m[caller]--
	if m[caller] <= 0 {
		delete(m, caller)
	}
	if len(m) == 0 {
		delete(k.replyRights, server)
	}
}
