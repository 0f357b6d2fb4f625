// Package manifest defines the boot manifest: the processes the kernel
// starts at genesis and the capabilities each is born holding.
// Manifests are written in CUE and compiled into a BootSpec; the hash
// of the compiled spec is sealed into the genesis commit, so two
// stores can be told apart by what they were booted with.
package manifest

import (
	"fmt"
	"unicode/utf8"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// maxName bounds manifest and process names.
const maxName = 64

// BootSpec is the compiled boot manifest.
type BootSpec struct {
	// Name labels the manifest; purely descriptive.
	Name string

	// Processes are spawned in order at boot, so their pids are
	// deterministic: the first entry is pid 1.
	Processes []ProcessSpec
}

// ProcessSpec describes one boot-time process.
type ProcessSpec struct {
	// Name is the process name recorded in the process table.
	Name string

	// Program names the platform program image to run. Defaults to
	// Name when the manifest omits it.
	Program string

	// Grants are inserted into the process's capability space in
	// order, starting at the slot after its input endpoint.
	Grants []Grant
}

// Grant is one boot-time capability: an object and the rights on it.
// Boot grants carry whatever rights the manifest names, full ones
// included; attenuating before passing access on is the processes'
// own job.
type Grant struct {
	Type   abi.ObjectType
	Object uint64
	Rights abi.Rights
}

// Validate checks the boot spec against the structural rules the
// kernel assumes: usable names, unique processes, grantable object
// types.
func (s BootSpec) Validate() error {
	if !validName(s.Name) {
		return fmt.Errorf("manifest name %q: empty, too long, or not valid UTF-8", s.Name)
	}
	seen := make(map[string]bool, len(s.Processes))
	for i, p := range s.Processes {
		if !validName(p.Name) {
			return fmt.Errorf("process %d: name %q: empty, too long, or not valid UTF-8", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("process %q declared twice", p.Name)
		}
		seen[p.Name] = true
		if p.Program != "" && !validName(p.Program) {
			return fmt.Errorf("process %q: program %q: too long or not valid UTF-8", p.Name, p.Program)
		}
		for j, g := range p.Grants {
			if !g.Type.Valid() {
				return fmt.Errorf("process %q: grant %d: unknown object type %d", p.Name, j, g.Type)
			}
			if g.Type == abi.ObjectEndpoint {
				return fmt.Errorf("process %q: grant %d: endpoints do not exist at boot", p.Name, j)
			}
		}
	}
	return nil
}

// Normalize fills defaulted fields: a process with no program runs the
// program registered under its own name.
func (s BootSpec) Normalize() BootSpec {
	out := s
	out.Processes = make([]ProcessSpec, len(s.Processes))
	for i, p := range s.Processes {
		if p.Program == "" {
			p.Program = p.Name
		}
		out.Processes[i] = p
	}
	return out
}

// Hash computes the manifest digest sealed into the genesis commit:
// the canonical JSON of the compiled spec under the manifest domain.
// Defaults are filled first, so an explicit program equal to the
// process name hashes the same as an omitted one.
func (s BootSpec) Hash() (string, error) {
	data, err := abi.MarshalCanonical(s.Normalize().encode())
	if err != nil {
		return "", fmt.Errorf("manifest hash: %w", err)
	}
	return abi.HashDomain(abi.DomainManifest, data), nil
}

func (s BootSpec) encode() abi.Obj {
	procs := make(abi.Arr, 0, len(s.Processes))
	for _, p := range s.Processes {
		grants := make(abi.Arr, 0, len(p.Grants))
		for _, g := range p.Grants {
			grants = append(grants, abi.Obj{
				"type":   abi.Int(int64(g.Type)),
				"object": abi.U64(g.Object),
				"rights": abi.Int(int64(g.Rights.Bits())),
			})
		}
		procs = append(procs, abi.Obj{
			"name":    abi.Str(p.Name),
			"program": abi.Str(p.Program),
			"grants":  grants,
		})
	}
	return abi.Obj{
		"name":      abi.Str(s.Name),
		"processes": procs,
	}
}

func validName(s string) bool {
	return s != "" && len(s) <= maxName && utf8.ValidString(s)
}
