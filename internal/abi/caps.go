package abi

import "fmt"

// ObjectType classifies the kernel object a capability refers to.
type ObjectType uint32

const (
	ObjectEndpoint ObjectType = 1
	ObjectConsole  ObjectType = 2
	ObjectStorage  ObjectType = 3
	ObjectNetwork  ObjectType = 4
	ObjectProcess  ObjectType = 5
	ObjectMemory   ObjectType = 6
)

// ProcessTable is the object id of a Process capability that covers the
// whole process table rather than one process. Holding write on it
// authorizes spawn and kill of any process.
const ProcessTable uint64 = 0

// ConsoleMain is the object id of the system console.
const ConsoleMain uint64 = 0

var objectTypeNames = map[ObjectType]string{
	ObjectEndpoint: "endpoint",
	ObjectConsole:  "console",
	ObjectStorage:  "storage",
	ObjectNetwork:  "network",
	ObjectProcess:  "process",
	ObjectMemory:   "memory",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("object_type(%d)", uint32(t))
}

// Valid reports whether t is one of the defined object types.
func (t ObjectType) Valid() bool {
	_, ok := objectTypeNames[t]
	return ok
}

// ParseObjectType maps a lowercase name back to its ObjectType.
// Used by boot manifests and test scenarios.
func ParseObjectType(name string) (ObjectType, bool) {
	for t, n := range objectTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Rights is the permission triple carried by every capability.
// Rights only ever narrow: every grant or derive intersects the source
// rights with the requested rights, so no chain of operations can
// produce a bit absent upstream.
type Rights struct {
	Read  bool
	Write bool
	Grant bool
}

// RightsAll is the full permission set, held by an object's creator.
var RightsAll = Rights{Read: true, Write: true, Grant: true}

// Intersect returns the bitwise intersection of r and o. This is the
// attenuation rule: the result is a subset of both inputs.
func (r Rights) Intersect(o Rights) Rights {
	return Rights{
		Read:  r.Read && o.Read,
		Write: r.Write && o.Write,
		Grant: r.Grant && o.Grant,
	}
}

// SubsetOf reports whether every bit set in r is also set in o.
func (r Rights) SubsetOf(o Rights) bool {
	return (!r.Read || o.Read) && (!r.Write || o.Write) && (!r.Grant || o.Grant)
}

// Wire bit positions for Rights.Bits.
const (
	RightRead  uint32 = 1 << 0
	RightWrite uint32 = 1 << 1
	RightGrant uint32 = 1 << 2
)

// Bits packs the rights into the wire representation used in syscall
// arguments and encoded capabilities.
func (r Rights) Bits() uint32 {
	var b uint32
	if r.Read {
		b |= RightRead
	}
	if r.Write {
		b |= RightWrite
	}
	if r.Grant {
		b |= RightGrant
	}
	return b
}

// RightsFromBits unpacks a wire rights word. Unknown bits are ignored.
func RightsFromBits(b uint32) Rights {
	return Rights{
		Read:  b&RightRead != 0,
		Write: b&RightWrite != 0,
		Grant: b&RightGrant != 0,
	}
}

// String renders rights in the fixed three-column form used by traces
// and snapshots: "rw-" means read and write without grant.
func (r Rights) String() string {
	buf := []byte{'-', '-', '-'}
	if r.Read {
		buf[0] = 'r'
	}
	if r.Write {
		buf[1] = 'w'
	}
	if r.Grant {
		buf[2] = 'g'
	}
	return string(buf)
}

// ParseRights reads the compact form accepted by manifests: any
// combination of 'r', 'w', 'g' (order-insensitive, '-' ignored).
func ParseRights(s string) (Rights, error) {
	var r Rights
	for _, c := range s {
		switch c {
		case 'r':
			r.Read = true
		case 'w':
			r.Write = true
		case 'g':
			r.Grant = true
		case '-':
		default:
			return Rights{}, fmt.Errorf("invalid rights %q: unknown flag %q", s, c)
		}
	}
	return r, nil
}

// Capability is an unforgeable token granting Rights on one kernel
// object. Capabilities are stored by value in the kernel's per-process
// tables; a process only ever refers to one through a Slot, so it can
// neither read nor fabricate the token itself.
type Capability struct {
	ID     CapID
	Type   ObjectType
	Object uint64
	Rights Rights
}

// Attenuated returns a copy of c whose rights are intersected with req.
// The CapID is zero: the kernel mints a fresh id when it actually
// inserts the derived capability.
func (c Capability) Attenuated(req Rights) Capability {
	return Capability{
		Type:   c.Type,
		Object: c.Object,
		Rights: c.Rights.Intersect(req),
	}
}

// RevokeReason says why a capability was removed from a process.
type RevokeReason uint32

const (
	RevokeExplicit    RevokeReason = 1
	RevokeExpired     RevokeReason = 2
	RevokeProcessExit RevokeReason = 3
)

var revokeReasonNames = map[RevokeReason]string{
	RevokeExplicit:    "explicit",
	RevokeExpired:     "expired",
	RevokeProcessExit: "process_exit",
}

func (r RevokeReason) String() string {
	if name, ok := revokeReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("revoke_reason(%d)", uint32(r))
}

// Valid reports whether r is one of the defined reasons.
func (r RevokeReason) Valid() bool {
	_, ok := revokeReasonNames[r]
	return ok
}
