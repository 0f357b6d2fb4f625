package kernel

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
	"github.com/cypher-asi/zero-os-sub006/internal/state"
)

// maxProcessName bounds the name a spawn request may carry.
const maxProcessName = 64

// execSpawn creates a child process running the program named in the
// payload. It requires a write-capable capability on the process
// table.
//
// The parent is granted two capabilities: the full-rights process
// capability on the child, and a write capability on the child's
// input endpoint. The second is what bootstraps IPC: the parent
// sends first, the child learns the parent's pid from the message and
// answers through its reply right. Result: child pid, process
// capability slot, endpoint capability slot, three u64s.
func (k *Kernel) execSpawn(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	c, err := k.capFor(req.Pid, slot, abi.ObjectProcess, abi.Rights{Write: true})
	if err != nil {
		return 0, nil, err
	}
	if c.Object != abi.ProcessTable {
		return 0, nil, NewInvalidCapability(req.Pid, slot, "process capability does not cover the process table")
	}

	name := string(req.Data)
	if name == "" || len(name) > maxProcessName || !utf8.ValidString(name) {
		return 0, nil, fmt.Errorf("%w: process name", errInvalidArgument)
	}

	child, err := k.createProcess(req.Pid, name, name)
	if err != nil {
		return 0, nil, err
	}
	input, ok := k.inputEndpoint(child)
	if !ok {
		panic(fmt.Sprintf("kernel: fresh pid %d owns no input endpoint", child))
	}
	procSlot := k.insertCap(req.Pid, abi.Capability{
		Type:   abi.ObjectProcess,
		Object: uint64(child),
		Rights: abi.RightsAll,
	})
	epSlot := k.insertCap(req.Pid, abi.Capability{
		Type:   abi.ObjectEndpoint,
		Object: uint64(input),
		Rights: abi.Rights{Write: true},
	})

	out := make([]byte, 0, 24)
	out = append(out, abi.EncodeU64(uint64(child))...)
	out = append(out, abi.EncodeU64(uint64(procSlot))...)
	out = append(out, abi.EncodeU64(uint64(epSlot))...)
	return abi.ResultOK, out, nil
}

// execKill tears down the process named by a write-capable process
// capability. The victim's pending syscall, if any, is never executed:
// its mailbox closes with the teardown.
func (k *Kernel) execKill(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	c, err := k.capFor(req.Pid, slot, abi.ObjectProcess, abi.Rights{Write: true})
	if err != nil {
		return 0, nil, err
	}
	if c.Object == abi.ProcessTable {
		return 0, nil, NewInvalidCapability(req.Pid, slot, "capability names the process table, not a process")
	}
	victim := abi.Pid(c.Object)
	if _, ok := k.st.Procs[victim]; !ok {
		return 0, nil, NewProcessNotFound(req.Pid, fmt.Sprintf("pid %d already gone", victim))
	}

	k.teardownProcess(victim, req.Pid, -1, commit.ExitKilled)
	return abi.ResultOK, nil, nil
}

// execExit ends the calling process. The result is still delivered:
// the mailbox closes only after the final response is written.
func (k *Kernel) execExit(req mailbox.Request) (abi.ResultCode, []byte, error) {
	code := int32(uint32(req.Args[0]))
	k.teardownProcess(req.Pid, req.Pid, code, commit.ExitSelf)
	return abi.ResultOK, nil, nil
}

// execConsoleWrite pushes bytes to the platform console. Console
// output is I/O, not state: zero commits.
func (k *Kernel) execConsoleWrite(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	if _, err := k.capFor(req.Pid, slot, abi.ObjectConsole, abi.Rights{Write: true}); err != nil {
		return 0, nil, err
	}
	if err := k.platform.ConsoleWrite(req.Pid, req.Data); err != nil {
		return 0, nil, err
	}
	return abi.ResultOK, nil, nil
}

// teardownProcess removes a process and everything hanging off it.
// One ProcessExited commit performs the whole state teardown; the
// holders of capabilities on the destroyed endpoints are collected
// first, because after the apply those capabilities no longer exist to
// enumerate. Each surviving holder then gets its revocation notice.
func (k *Kernel) teardownProcess(victim, by abi.Pid, code int32, cause commit.ExitCause) {
	owned := k.st.OwnedEndpoints(victim)
	var holders []state.CapRef
	for _, ref := range k.st.EndpointCapHolders(owned) {
		if ref.Pid != victim {
			holders = append(holders, ref)
		}
	}

	k.commitAndApply(commit.ProcessExited{Pid: victim, Code: code, Cause: cause})

	for _, id := range owned {
		k.eps.Destroy(id)
	}
	delete(k.sysCounts, victim)
	delete(k.replyRights, victim)
	for server, rights := range k.replyRights {
		delete(rights, victim)
		if len(rights) == 0 {
			delete(k.replyRights, server)
		}
	}
	if unit, ok := k.units[victim]; ok {
		delete(k.units, victim)
		// Stop blocks until the unit goroutine finishes; never wait
		// for that while holding the kernel lock.
		go unit.Stop()
	}
	if victim == by {
		k.deadBoxes = append(k.deadBoxes, victim)
	} else {
		k.pool.Unbind(victim)
	}

	for _, ref := range holders {
		k.deliverRevokeNote(ref.Pid, abi.RevokeNote{
			Slot:   ref.Slot,
			Type:   ref.Cap.Type,
			Object: ref.Cap.Object,
			Reason: abi.RevokeProcessExit,
		})
	}

	slog.Info("process exited",
		"pid", victim, "code", code, "cause", cause.String(), "endpoints", len(owned), "notified", len(holders))
}
