package kernel

import (
	"fmt"
	"log/slog"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// dispatch runs one verified request through the gateway stages: log
// the request, check capabilities, execute, commit, log the response.
// The caller identity in req comes from the mailbox binding, never
// from request bytes; by the time a request reaches here its sender is
// already established.
//
// Every request produces exactly one response. A rejection produces
// zero commits: nothing is appended to the chain before the capability
// check passes.
func (k *Kernel) dispatch(req mailbox.Request) (abi.ResultCode, []byte) {
	args := [4]uint64{req.Args[0], req.Args[1], req.Args[2], uint64(len(req.Data))}
	reqID := k.events.Request(req.Pid, req.Sysno, args)
	k.sinkEvent(reqID)
	k.sysCounts[req.Pid]++

	code, data, err := k.execute(req)
	detail := ""
	if err != nil {
		code = resultFor(err)
		data = nil
		detail = err.Error()
		slog.Debug("syscall rejected",
			"pid", req.Pid, "sysno", req.Sysno.String(), "result", code.String(), "detail", detail)
	}

	respID := k.events.Response(req.Pid, reqID, code, detail)
	k.sinkEvent(respID)
	return code, data
}

func (k *Kernel) execute(req mailbox.Request) (abi.ResultCode, []byte, error) {
	switch req.Sysno {
	case abi.SysCapGrant:
		return k.execCapGrant(req)
	case abi.SysCapRevoke:
		return k.execCapRevoke(req)
	case abi.SysCapDelete:
		return k.execCapDelete(req)
	case abi.SysCapInspect:
		return k.execCapInspect(req)
	case abi.SysCapDerive:
		return k.execCapDerive(req)
	case abi.SysEndpointCreate:
		return k.execEndpointCreate(req)
	case abi.SysSend:
		return k.execSend(req)
	case abi.SysReceive:
		return k.execReceive(req)
	case abi.SysReply:
		return k.execReply(req)
	case abi.SysSendCaps:
		return k.execSendCaps(req)
	case abi.SysSpawn:
		return k.execSpawn(req)
	case abi.SysKill:
		return k.execKill(req)
	case abi.SysExit:
		return k.execExit(req)
	case abi.SysConsoleWrite:
		return k.execConsoleWrite(req)
	default:
		return 0, nil, fmt.Errorf("%w: unknown syscall 0x%x", errInvalidArgument, uint32(req.Sysno))
	}
}

// sinkEvent tees a just-appended audit event to the sink, if any.
func (k *Kernel) sinkEvent(id abi.EventID) {
	if k.sink == nil {
		return
	}
	e, ok := k.events.Find(id)
	if !ok {
		return
	}
	if err := k.sink.AppendEvent(e); err != nil {
		slog.Error("audit sink append failed", "event", uint64(id), "error", err)
	}
}
