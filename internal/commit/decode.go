package commit

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// DecodeBody reconstructs a typed body from its canonical JSON, the
// inverse of EncodeBody. The store uses it when loading a persisted
// chain back for replay.
func DecodeBody(t Type, data []byte) (Body, error) {
	v, err := abi.ValueFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", t, err)
	}
	obj, ok := v.(abi.Obj)
	if !ok {
		return nil, fmt.Errorf("decode %s body: not an object", t)
	}

	switch t {
	case TypeGenesis:
		bootID, err := fieldStr(obj, "boot_id")
		if err != nil {
			return nil, err
		}
		manifestHash, err := fieldStr(obj, "manifest_hash")
		if err != nil {
			return nil, err
		}
		return Genesis{BootID: bootID, ManifestHash: manifestHash}, nil

	case TypeProcessCreated:
		pid, err := fieldU64(obj, "pid")
		if err != nil {
			return nil, err
		}
		name, err := fieldStr(obj, "name")
		if err != nil {
			return nil, err
		}
		parent, err := fieldU64(obj, "parent")
		if err != nil {
			return nil, err
		}
		return ProcessCreated{Pid: abi.Pid(pid), Name: name, Parent: abi.Pid(parent)}, nil

	case TypeProcessExited:
		pid, err := fieldU64(obj, "pid")
		if err != nil {
			return nil, err
		}
		code, err := fieldInt(obj, "code")
		if err != nil {
			return nil, err
		}
		cause, err := fieldInt(obj, "cause")
		if err != nil {
			return nil, err
		}
		if cause != int64(ExitSelf) && cause != int64(ExitKilled) {
			return nil, fmt.Errorf("decode process_exited: unknown cause %d", cause)
		}
		return ProcessExited{Pid: abi.Pid(pid), Code: int32(code), Cause: ExitCause(cause)}, nil

	case TypeEndpointCreated:
		ep, err := fieldU64(obj, "endpoint")
		if err != nil {
			return nil, err
		}
		owner, err := fieldU64(obj, "owner")
		if err != nil {
			return nil, err
		}
		return EndpointCreated{Endpoint: abi.EndpointID(ep), Owner: abi.Pid(owner)}, nil

	case TypeEndpointDestroyed:
		ep, err := fieldU64(obj, "endpoint")
		if err != nil {
			return nil, err
		}
		return EndpointDestroyed{Endpoint: abi.EndpointID(ep)}, nil

	case TypeCapInserted:
		pid, err := fieldU64(obj, "pid")
		if err != nil {
			return nil, err
		}
		slot, err := fieldU64(obj, "slot")
		if err != nil {
			return nil, err
		}
		capObj, err := fieldObj(obj, "cap")
		if err != nil {
			return nil, err
		}
		id, err := fieldU64(capObj, "id")
		if err != nil {
			return nil, err
		}
		typ, err := fieldU64(capObj, "type")
		if err != nil {
			return nil, err
		}
		if !abi.ObjectType(typ).Valid() {
			return nil, fmt.Errorf("decode cap_inserted: unknown object type %d", typ)
		}
		object, err := fieldU64(capObj, "object")
		if err != nil {
			return nil, err
		}
		rights, err := fieldU64(capObj, "rights")
		if err != nil {
			return nil, err
		}
		return CapInserted{
			Pid:  abi.Pid(pid),
			Slot: abi.Slot(slot),
			Cap: abi.Capability{
				ID:     abi.CapID(id),
				Type:   abi.ObjectType(typ),
				Object: object,
				Rights: abi.RightsFromBits(uint32(rights)),
			},
		}, nil

	case TypeCapRemoved:
		pid, err := fieldU64(obj, "pid")
		if err != nil {
			return nil, err
		}
		slot, err := fieldU64(obj, "slot")
		if err != nil {
			return nil, err
		}
		capID, err := fieldU64(obj, "cap_id")
		if err != nil {
			return nil, err
		}
		cause, err := fieldInt(obj, "cause")
		if err != nil {
			return nil, err
		}
		if cause < int64(CauseDelete) || cause > int64(CauseExpired) {
			return nil, fmt.Errorf("decode cap_removed: unknown cause %d", cause)
		}
		return CapRemoved{
			Pid:   abi.Pid(pid),
			Slot:  abi.Slot(slot),
			CapID: abi.CapID(capID),
			Cause: RemovalCause(cause),
		}, nil

	case TypeMessageSent:
		from, err := fieldU64(obj, "from")
		if err != nil {
			return nil, err
		}
		ep, err := fieldU64(obj, "endpoint")
		if err != nil {
			return nil, err
		}
		to, err := fieldU64(obj, "to")
		if err != nil {
			return nil, err
		}
		tag, err := fieldU64(obj, "tag")
		if err != nil {
			return nil, err
		}
		size, err := fieldU64(obj, "size")
		if err != nil {
			return nil, err
		}
		caps, err := fieldU64(obj, "caps")
		if err != nil {
			return nil, err
		}
		return MessageSent{
			From:     abi.Pid(from),
			Endpoint: abi.EndpointID(ep),
			To:       abi.Pid(to),
			Tag:      uint32(tag),
			Size:     uint32(size),
			Caps:     uint32(caps),
		}, nil

	default:
		return nil, fmt.Errorf("decode: unknown commit type %d", t)
	}
}

func fieldInt(o abi.Obj, key string) (int64, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	n, ok := v.(abi.Int)
	if !ok {
		return 0, fmt.Errorf("field %q: want integer, got %T", key, v)
	}
	return int64(n), nil
}

func fieldU64(o abi.Obj, key string) (uint64, error) {
	n, err := fieldInt(o, key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("field %q: negative value %d", key, n)
	}
	return uint64(n), nil
}

func fieldStr(o abi.Obj, key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(abi.Str)
	if !ok {
		return "", fmt.Errorf("field %q: want string, got %T", key, v)
	}
	return string(s), nil
}

func fieldObj(o abi.Obj, key string) (abi.Obj, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	obj, ok := v.(abi.Obj)
	if !ok {
		return nil, fmt.Errorf("field %q: want object, got %T", key, v)
	}
	return obj, nil
}
