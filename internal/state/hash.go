package state

import (
	"strconv"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// Hash computes the canonical digest of the state. Equal states always
// produce equal hashes: maps are rendered as canonical objects with
// decimal-string keys, and every field that enters the digest is
// replay-relevant by construction.
func (s *State) Hash() string {
	procs := make(abi.Obj, len(s.Procs))
	for _, pid := range s.Pids() {
		p := s.Procs[pid]
		procs[u64key(uint64(pid))] = abi.Obj{
			"name":   abi.Str(p.Name),
			"parent": abi.U64(uint64(p.Parent)),
		}
	}

	endpoints := make(abi.Obj, len(s.Endpoints))
	for _, id := range s.EndpointIDs() {
		ep := s.Endpoints[id]
		endpoints[u64key(uint64(id))] = abi.Obj{
			"owner": abi.U64(uint64(ep.Owner)),
			"sent":  abi.U64(ep.Sent),
			"bytes": abi.U64(ep.Bytes),
		}
	}

	caps := make(abi.Obj, s.Caps.Len())
	for _, pid := range s.Caps.Pids() {
		sp, _ := s.Caps.Space(pid)
		slots := make(abi.Obj, sp.Len())
		for _, slot := range sp.Slots() {
			c, _ := sp.Get(slot)
			slots[u64key(uint64(slot))] = abi.Obj{
				"id":     abi.U64(uint64(c.ID)),
				"type":   abi.Int(int64(c.Type)),
				"object": abi.U64(c.Object),
				"rights": abi.Int(int64(c.Rights.Bits())),
			}
		}
		caps[u64key(uint64(pid))] = slots
	}

	body := abi.MustMarshalCanonical(abi.Obj{
		"boot_id":       abi.Str(s.BootID),
		"manifest_hash": abi.Str(s.ManifestHash),
		"seq":           abi.U64(s.Seq),
		"next_pid":      abi.U64(s.NextPid),
		"next_endpoint": abi.U64(s.NextEndpoint),
		"next_cap":      abi.U64(s.NextCapID),
		"procs":         procs,
		"endpoints":     endpoints,
		"caps":          caps,
	})
	return abi.HashDomain(abi.DomainState, body)
}

func u64key(v uint64) string {
	return strconv.FormatUint(v, 10)
}
