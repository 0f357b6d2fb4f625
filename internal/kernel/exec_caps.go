package kernel

import (
	"fmt"
	"log/slog"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// execCapGrant copies an attenuated capability into another process's
// space. The source must carry the grant right; the granted rights are
// the intersection of the source rights and the requested rights, so
// no grant chain can ever widen access.
func (k *Kernel) execCapGrant(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	to := abi.Pid(req.Args[1])
	want := abi.RightsFromBits(uint32(req.Args[2]))

	src, err := k.capAt(req.Pid, slot)
	if err != nil {
		return 0, nil, err
	}
	if !src.Rights.Grant {
		return 0, nil, NewPermissionDenied(req.Pid, slot, "grant right required")
	}
	if _, ok := k.st.Caps.Space(to); !ok {
		return 0, nil, NewProcessNotFound(req.Pid, fmt.Sprintf("grant target pid %d", to))
	}

	granted := src.Attenuated(want)
	dst := k.insertCap(to, granted)
	slog.Debug("capability granted",
		"from", req.Pid, "to", to, "object", granted.Type.String(), "rights", granted.Rights.String(), "slot", dst)
	return abi.ResultOK, abi.EncodeU64(uint64(dst)), nil
}

// execCapRevoke removes a capability from the caller's space and
// delivers the one-shot revocation notice to the caller's input
// endpoint. Possession of the slot is the only requirement.
func (k *Kernel) execCapRevoke(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	c, err := k.capAt(req.Pid, slot)
	if err != nil {
		return 0, nil, err
	}

	k.commitAndApply(commit.CapRemoved{Pid: req.Pid, Slot: slot, CapID: c.ID, Cause: commit.CauseRevoke})
	k.deliverRevokeNote(req.Pid, abi.RevokeNote{
		Slot:   slot,
		Type:   c.Type,
		Object: c.Object,
		Reason: abi.RevokeExplicit,
	})
	return abi.ResultOK, nil, nil
}

// execCapDelete removes a capability silently: same removal as revoke,
// no notification.
func (k *Kernel) execCapDelete(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	c, err := k.capAt(req.Pid, slot)
	if err != nil {
		return 0, nil, err
	}
	k.commitAndApply(commit.CapRemoved{Pid: req.Pid, Slot: slot, CapID: c.ID, Cause: commit.CauseDelete})
	return abi.ResultOK, nil, nil
}

// execCapInspect returns the capability record in a slot. Pure read:
// zero commits.
func (k *Kernel) execCapInspect(req mailbox.Request) (abi.ResultCode, []byte, error) {
	c, err := k.capAt(req.Pid, abi.Slot(req.Args[0]))
	if err != nil {
		return 0, nil, err
	}
	return abi.ResultOK, abi.EncodeCap(c), nil
}

// execCapDerive narrows a capability within the caller's own space:
// the same attenuation rule as grant, no grant right required, source
// slot untouched.
func (k *Kernel) execCapDerive(req mailbox.Request) (abi.ResultCode, []byte, error) {
	slot := abi.Slot(req.Args[0])
	want := abi.RightsFromBits(uint32(req.Args[1]))

	src, err := k.capAt(req.Pid, slot)
	if err != nil {
		return 0, nil, err
	}
	derived := src.Attenuated(want)
	dst := k.insertCap(req.Pid, derived)
	return abi.ResultOK, abi.EncodeU64(uint64(dst)), nil
}
