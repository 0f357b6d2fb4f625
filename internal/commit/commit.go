// Package commit defines the hash-chained log of accepted state
// mutations. Every commit's hash covers the previous hash and the
// commit's canonical serialization, so any byte of history that
// changes after the fact breaks the chain at its own sequence number.
//
// Commits carry metadata only. Message payloads in particular are never
// committed: a MessageSent records sender, endpoint, recipient, tag,
// and size, which is everything replay needs and nothing an audit
// reader should not see.
package commit

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Type discriminates commit bodies.
type Type uint8

const (
	TypeGenesis           Type = 1
	TypeProcessCreated    Type = 2
	TypeProcessExited     Type = 3
	TypeEndpointCreated   Type = 4
	TypeEndpointDestroyed Type = 5
	TypeCapInserted       Type = 6
	TypeCapRemoved        Type = 7
	TypeMessageSent       Type = 8
)

var typeNames = map[Type]string{
	TypeGenesis:           "genesis",
	TypeProcessCreated:    "process_created",
	TypeProcessExited:     "process_exited",
	TypeEndpointCreated:   "endpoint_created",
	TypeEndpointDestroyed: "endpoint_destroyed",
	TypeCapInserted:       "cap_inserted",
	TypeCapRemoved:        "cap_removed",
	TypeMessageSent:       "message_sent",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("commit_type(%d)", uint8(t))
}

// Valid reports whether t is a defined commit type.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType maps a commit type name back to its Type. Used by test
// scenarios that name commit types in YAML.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Body is the sealed set of commit payloads. Each body knows its Type
// and its canonical object form; nothing outside this package can
// implement it, so the chain only ever contains known shapes.
type Body interface {
	Kind() Type
	encode() abi.Obj
	commitBody()
}

// Genesis opens every chain at seq 0. It records the boot identity and
// the hash of the boot manifest the kernel was brought up with, so two
// stores can be told apart before comparing a single state hash.
type Genesis struct {
	BootID       string
	ManifestHash string
}

func (Genesis) commitBody() {}
func (Genesis) Kind() Type  { return TypeGenesis }
func (g Genesis) encode() abi.Obj {
	return abi.Obj{
		"boot_id":       abi.Str(g.BootID),
		"manifest_hash": abi.Str(g.ManifestHash),
	}
}

// ProcessCreated records a new process and its parent. The initial
// capability grants follow as their own CapInserted commits.
type ProcessCreated struct {
	Pid    abi.Pid
	Name   string
	Parent abi.Pid
}

func (ProcessCreated) commitBody() {}
func (ProcessCreated) Kind() Type  { return TypeProcessCreated }
func (p ProcessCreated) encode() abi.Obj {
	return abi.Obj{
		"pid":    abi.U64(uint64(p.Pid)),
		"name":   abi.Str(p.Name),
		"parent": abi.U64(uint64(p.Parent)),
	}
}

// ExitCause says whether a process left on its own or was killed.
type ExitCause uint8

const (
	ExitSelf   ExitCause = 1
	ExitKilled ExitCause = 2
)

func (c ExitCause) String() string {
	switch c {
	case ExitSelf:
		return "exit"
	case ExitKilled:
		return "kill"
	default:
		return fmt.Sprintf("exit_cause(%d)", uint8(c))
	}
}

// ProcessExited ends a process. Applying it performs the whole
// teardown: the cspace is dropped, owned endpoints are destroyed, and
// capabilities other processes held on those endpoints are scrubbed,
// all inside this one commit so replay never needs companion records.
type ProcessExited struct {
	Pid   abi.Pid
	Code  int32
	Cause ExitCause
}

func (ProcessExited) commitBody() {}
func (ProcessExited) Kind() Type  { return TypeProcessExited }
func (p ProcessExited) encode() abi.Obj {
	return abi.Obj{
		"pid":   abi.U64(uint64(p.Pid)),
		"code":  abi.Int(p.Code),
		"cause": abi.Int(int64(p.Cause)),
	}
}

// EndpointCreated registers a new endpoint under its owner.
type EndpointCreated struct {
	Endpoint abi.EndpointID
	Owner    abi.Pid
}

func (EndpointCreated) commitBody() {}
func (EndpointCreated) Kind() Type  { return TypeEndpointCreated }
func (e EndpointCreated) encode() abi.Obj {
	return abi.Obj{
		"endpoint": abi.U64(uint64(e.Endpoint)),
		"owner":    abi.U64(uint64(e.Owner)),
	}
}

// EndpointDestroyed removes an endpoint explicitly (owner exit is
// covered by ProcessExited).
type EndpointDestroyed struct {
	Endpoint abi.EndpointID
}

func (EndpointDestroyed) commitBody() {}
func (EndpointDestroyed) Kind() Type  { return TypeEndpointDestroyed }
func (e EndpointDestroyed) encode() abi.Obj {
	return abi.Obj{
		"endpoint": abi.U64(uint64(e.Endpoint)),
	}
}

// CapInserted places a capability into a process's space at a fixed
// slot. The slot is part of the commit so replay reproduces the exact
// table layout.
type CapInserted struct {
	Pid  abi.Pid
	Slot abi.Slot
	Cap  abi.Capability
}

func (CapInserted) commitBody() {}
func (CapInserted) Kind() Type  { return TypeCapInserted }
func (c CapInserted) encode() abi.Obj {
	return abi.Obj{
		"pid":  abi.U64(uint64(c.Pid)),
		"slot": abi.Int(int64(c.Slot)),
		"cap": abi.Obj{
			"id":     abi.U64(uint64(c.Cap.ID)),
			"type":   abi.Int(int64(c.Cap.Type)),
			"object": abi.U64(c.Cap.Object),
			"rights": abi.Int(int64(c.Cap.Rights.Bits())),
		},
	}
}

// RemovalCause says why a capability left a slot.
type RemovalCause uint8

const (
	CauseDelete  RemovalCause = 1
	CauseRevoke  RemovalCause = 2
	CauseMoved   RemovalCause = 3
	CauseExpired RemovalCause = 4
)

func (c RemovalCause) String() string {
	switch c {
	case CauseDelete:
		return "delete"
	case CauseRevoke:
		return "revoke"
	case CauseMoved:
		return "moved"
	case CauseExpired:
		return "expired"
	default:
		return fmt.Sprintf("removal_cause(%d)", uint8(c))
	}
}

// CapRemoved clears a slot. Moves (send_with_caps) emit a CapRemoved
// for the sender paired with a CapInserted for the receiver.
type CapRemoved struct {
	Pid   abi.Pid
	Slot  abi.Slot
	CapID abi.CapID
	Cause RemovalCause
}

func (CapRemoved) commitBody() {}
func (CapRemoved) Kind() Type  { return TypeCapRemoved }
func (c CapRemoved) encode() abi.Obj {
	return abi.Obj{
		"pid":    abi.U64(uint64(c.Pid)),
		"slot":   abi.Int(int64(c.Slot)),
		"cap_id": abi.U64(uint64(c.CapID)),
		"cause":  abi.Int(int64(c.Cause)),
	}
}

// MessageSent records a delivery: sender, endpoint, owning recipient,
// tag, payload size, and how many capabilities moved with it. Never
// the payload itself.
type MessageSent struct {
	From     abi.Pid
	Endpoint abi.EndpointID
	To       abi.Pid
	Tag      uint32
	Size     uint32
	Caps     uint32
}

func (MessageSent) commitBody() {}
func (MessageSent) Kind() Type  { return TypeMessageSent }
func (m MessageSent) encode() abi.Obj {
	return abi.Obj{
		"from":     abi.U64(uint64(m.From)),
		"endpoint": abi.U64(uint64(m.Endpoint)),
		"to":       abi.U64(uint64(m.To)),
		"tag":      abi.Int(int64(m.Tag)),
		"size":     abi.Int(int64(m.Size)),
		"caps":     abi.Int(int64(m.Caps)),
	}
}

// Commit is one sealed record in the chain.
type Commit struct {
	Seq  uint64
	Prev string
	Hash string
	Body Body
}

// Type returns the body's discriminator.
func (c Commit) Type() Type {
	return c.Body.Kind()
}

// EncodeBody returns the body's canonical JSON, the form the store
// persists and the hash covers.
func EncodeBody(b Body) ([]byte, error) {
	return abi.MarshalCanonical(b.encode())
}

// envelope is the hashed serialization of a commit: sequence number,
// type, and body in one canonical object.
func envelope(seq uint64, b Body) ([]byte, error) {
	return abi.MarshalCanonical(abi.Obj{
		"seq":  abi.U64(seq),
		"type": abi.Int(int64(b.Kind())),
		"body": b.encode(),
	})
}

// ComputeHash recomputes the chain hash of c from its own content and
// recorded Prev. Verification compares this against the recorded Hash.
func (c Commit) ComputeHash() (string, error) {
	env, err := envelope(c.Seq, c.Body)
	if err != nil {
		return "", fmt.Errorf("commit %d: %w", c.Seq, err)
	}
	return abi.HashDomain(abi.DomainCommit, []byte(c.Prev), env), nil
}
