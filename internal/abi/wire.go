package abi

import (
	"encoding/binary"
	"fmt"
)

// Fixed little-endian encodings for payloads crossing the mailbox data
// area. These are the only binary formats in the system; everything
// hashed uses canonical JSON instead.

// MsgHeaderBytes is the sender+tag prefix a received message carries in
// the data area: from_pid u64, tag u32.
const MsgHeaderBytes = 12

// MaxMessageData bounds a message payload so a full message (header
// included) fits the mailbox data area.
const MaxMessageData = DataCapacity - MsgHeaderBytes

// EncodeMessage lays out a received message for the mailbox data area.
func EncodeMessage(from Pid, tag uint32, payload []byte) []byte {
	out := make([]byte, MsgHeaderBytes+len(payload))
	binary.LittleEndian.PutUint64(out[0:8], uint64(from))
	binary.LittleEndian.PutUint32(out[8:12], tag)
	copy(out[MsgHeaderBytes:], payload)
	return out
}

// DecodeMessage splits a mailbox data area back into sender, tag, and
// payload. The payload is a copy, safe to hold after the mailbox is
// reused.
func DecodeMessage(data []byte) (Pid, uint32, []byte, error) {
	if len(data) < MsgHeaderBytes {
		return 0, 0, nil, fmt.Errorf("message too short: %d bytes", len(data))
	}
	from := Pid(binary.LittleEndian.Uint64(data[0:8]))
	tag := binary.LittleEndian.Uint32(data[8:12])
	payload := make([]byte, len(data)-MsgHeaderBytes)
	copy(payload, data[MsgHeaderBytes:])
	return from, tag, payload, nil
}

// CapInfoBytes is the encoded size of one capability record:
// id u64, type u32, object u64, rights u32.
const CapInfoBytes = 24

// EncodeCap lays out a capability record for inspect results.
func EncodeCap(c Capability) []byte {
	out := make([]byte, CapInfoBytes)
	binary.LittleEndian.PutUint64(out[0:8], uint64(c.ID))
	binary.LittleEndian.PutUint32(out[8:12], uint32(c.Type))
	binary.LittleEndian.PutUint64(out[12:20], c.Object)
	binary.LittleEndian.PutUint32(out[20:24], c.Rights.Bits())
	return out
}

// DecodeCap reads a capability record back.
func DecodeCap(data []byte) (Capability, error) {
	if len(data) < CapInfoBytes {
		return Capability{}, fmt.Errorf("capability record too short: %d bytes", len(data))
	}
	return Capability{
		ID:     CapID(binary.LittleEndian.Uint64(data[0:8])),
		Type:   ObjectType(binary.LittleEndian.Uint32(data[8:12])),
		Object: binary.LittleEndian.Uint64(data[12:20]),
		Rights: RightsFromBits(binary.LittleEndian.Uint32(data[20:24])),
	}, nil
}

// RevokeNote is the payload of a TagCapRevoked notification: which slot
// disappeared, what it referred to, and why.
type RevokeNote struct {
	Slot   Slot
	Type   ObjectType
	Object uint64
	Reason RevokeReason
}

const revokeNoteBytes = 20

// Encode lays the note out for delivery.
func (n RevokeNote) Encode() []byte {
	out := make([]byte, revokeNoteBytes)
	binary.LittleEndian.PutUint32(out[0:4], uint32(n.Slot))
	binary.LittleEndian.PutUint32(out[4:8], uint32(n.Type))
	binary.LittleEndian.PutUint64(out[8:16], n.Object)
	binary.LittleEndian.PutUint32(out[16:20], uint32(n.Reason))
	return out
}

// DecodeRevokeNote reads a revocation notification payload.
func DecodeRevokeNote(data []byte) (RevokeNote, error) {
	if len(data) < revokeNoteBytes {
		return RevokeNote{}, fmt.Errorf("revoke note too short: %d bytes", len(data))
	}
	return RevokeNote{
		Slot:   Slot(binary.LittleEndian.Uint32(data[0:4])),
		Type:   ObjectType(binary.LittleEndian.Uint32(data[4:8])),
		Object: binary.LittleEndian.Uint64(data[8:16]),
		Reason: RevokeReason(binary.LittleEndian.Uint32(data[16:20])),
	}, nil
}

// EncodeU64 and DecodeU64 carry a single 64-bit id (endpoint id, pid)
// through the data area when the 32-bit result word is too small.
func EncodeU64(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}

func DecodeU64(data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("u64 payload too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[0:8]), nil
}

// EncodeSlots packs the cap-slot list that prefixes a send_with_caps
// payload; DecodeSlots unpacks the first n slots from the data area.
func EncodeSlots(slots []Slot) []byte {
	out := make([]byte, 4*len(slots))
	for i, s := range slots {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(s))
	}
	return out
}

func DecodeSlots(data []byte, n int) ([]Slot, error) {
	if n < 0 || len(data) < 4*n {
		return nil, fmt.Errorf("slot list too short: want %d slots in %d bytes", n, len(data))
	}
	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = Slot(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return slots, nil
}
