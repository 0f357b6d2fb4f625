package abi

import "fmt"

// Sysno is a syscall number as written into the mailbox by a process.
// Numbers are grouped by nibble: 0x0x capability ops, 0x1x endpoint
// ops, 0x2x process ops, 0x3x console I/O.
type Sysno uint32

const (
	SysCapGrant   Sysno = 0x01
	SysCapRevoke  Sysno = 0x02
	SysCapDelete  Sysno = 0x03
	SysCapInspect Sysno = 0x04
	SysCapDerive  Sysno = 0x05

	SysEndpointCreate Sysno = 0x10
	SysSend           Sysno = 0x11
	SysReceive        Sysno = 0x12
	SysReply          Sysno = 0x13
	SysSendCaps       Sysno = 0x14

	SysSpawn Sysno = 0x20
	SysKill  Sysno = 0x21
	SysExit  Sysno = 0x22

	SysConsoleWrite Sysno = 0x30
)

var sysnoNames = map[Sysno]string{
	SysCapGrant:       "cap_grant",
	SysCapRevoke:      "cap_revoke",
	SysCapDelete:      "cap_delete",
	SysCapInspect:     "cap_inspect",
	SysCapDerive:      "cap_derive",
	SysEndpointCreate: "endpoint_create",
	SysSend:           "send",
	SysReceive:        "receive",
	SysReply:          "reply",
	SysSendCaps:       "send_with_caps",
	SysSpawn:          "spawn",
	SysKill:           "kill",
	SysExit:           "exit",
	SysConsoleWrite:   "console_write",
}

func (s Sysno) String() string {
	if name, ok := sysnoNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sys_0x%02x", uint32(s))
}

// Valid reports whether s is a defined syscall number.
func (s Sysno) Valid() bool {
	_, ok := sysnoNames[s]
	return ok
}

// ParseSysno maps a syscall name back to its number. Used by test
// scenarios that name syscalls in YAML.
func ParseSysno(name string) (Sysno, bool) {
	for s, n := range sysnoNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
