package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/manifest"
)

// Scenario defines a conformance scenario: a boot manifest, a sequence
// of syscalls driven through the gateway, and assertions on the
// resulting commit chain and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the
	// golden file name for trace comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Boot declares the processes the kernel boots with and the
	// capabilities each is born holding.
	Boot BootDecl `yaml:"boot"`

	// Setup contains syscalls that establish preconditions. Every
	// setup step must succeed; a failure aborts the scenario.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the syscalls under test. Each step's result is
	// checked against its expect clause and recorded in the trace.
	Flow []Step `yaml:"flow"`

	// Assertions validate the commit chain and final state after the
	// flow completes. The chain is always re-verified regardless.
	Assertions []Assertion `yaml:"assertions"`

	// BootID pins the boot identifier for deterministic traces.
	// Defaults to "boot-harness" when empty.
	BootID string `yaml:"boot_id,omitempty"`
}

// BootDecl is the scenario form of a boot manifest. It compiles to a
// manifest.BootSpec; processes get pids 1..N in declaration order, so
// steps can address them numerically.
type BootDecl struct {
	// Name labels the manifest.
	Name string `yaml:"name"`

	// Processes are spawned in order at boot.
	Processes []ProcessDecl `yaml:"processes"`
}

// ProcessDecl declares one boot-time process.
type ProcessDecl struct {
	// Name is the process name. It doubles as the platform program
	// name unless program overrides it.
	Name string `yaml:"name"`

	// Program optionally names a different platform program.
	Program string `yaml:"program,omitempty"`

	// Grants are inserted in order after the input endpoint
	// capability in slot 0.
	Grants []GrantDecl `yaml:"grants,omitempty"`
}

// GrantDecl declares one boot grant.
type GrantDecl struct {
	// Type is the object type name, e.g. "storage" or "console".
	Type string `yaml:"type"`

	// Object is the object identifier.
	Object uint64 `yaml:"object"`

	// Rights is the compact rights form, e.g. "rwg" or "w".
	Rights string `yaml:"rights"`
}

// Step drives one syscall through the gateway.
type Step struct {
	// Pid is the calling process. Boot processes are pids 1..N in
	// declaration order; spawned children continue the sequence.
	Pid uint64 `yaml:"pid"`

	// Syscall is the syscall name, e.g. "cap_grant" or "send".
	Syscall string `yaml:"syscall"`

	// Args are the argument words, at most three. Missing words are
	// zero.
	Args []uint64 `yaml:"args,omitempty"`

	// Data is the request payload as text. Syscalls with structured
	// payloads (send_with_caps) are driven from Go tests instead.
	Data string `yaml:"data,omitempty"`

	// Expect names the expected result, e.g. "ok" or
	// "permission_denied". Empty means "ok".
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the commit chain or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "chain_contains": a commit of the given type with matching fields exists
	// - "chain_order": commit types appear in the given order
	// - "chain_count": a commit type appears exactly N times
	// - "final_state": live processes, endpoints and capability counts match
	Type string `yaml:"type"`

	// Commit is the commit type name (used by chain_contains, chain_count).
	Commit string `yaml:"commit,omitempty"`

	// Fields are expected body fields (used by chain_contains).
	// Subset match against the commit's canonical form; nested
	// objects compare whole.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Commits is the expected commit type order (used by chain_order).
	// Types need not be consecutive; each must first appear in the
	// given order.
	Commits []string `yaml:"commits,omitempty"`

	// Count is the expected number of occurrences (used by chain_count).
	Count int `yaml:"count,omitempty"`

	// Processes is the expected set of live process names in pid
	// order (used by final_state). Omitted means unchecked; an empty
	// list asserts none are left.
	Processes []string `yaml:"processes,omitempty"`

	// Endpoints is the expected number of live endpoints (used by
	// final_state). Omitted means unchecked.
	Endpoints *int `yaml:"endpoints,omitempty"`

	// Caps maps pid to the expected capability count (used by
	// final_state).
	Caps map[uint64]int `yaml:"caps,omitempty"`
}

// Assertion type constants.
const (
	AssertChainContains = "chain_contains"
	AssertChainOrder    = "chain_order"
	AssertChainCount    = "chain_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" for
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// BootSpec compiles the scenario's boot declaration into the manifest
// form the kernel boots from.
func (s *Scenario) BootSpec() (manifest.BootSpec, error) {
	spec := manifest.BootSpec{Name: s.Boot.Name}
	for _, p := range s.Boot.Processes {
		ps := manifest.ProcessSpec{Name: p.Name, Program: p.Program}
		for j, g := range p.Grants {
			t, ok := abi.ParseObjectType(g.Type)
			if !ok {
				return manifest.BootSpec{}, fmt.Errorf("process %q: grant %d: unknown object type %q", p.Name, j, g.Type)
			}
			r, err := abi.ParseRights(g.Rights)
			if err != nil {
				return manifest.BootSpec{}, fmt.Errorf("process %q: grant %d: %w", p.Name, j, err)
			}
			ps.Grants = append(ps.Grants, manifest.Grant{Type: t, Object: g.Object, Rights: r})
		}
		spec.Processes = append(spec.Processes, ps)
	}
	return spec, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	// The boot declaration must compile and pass the kernel's own
	// manifest rules.
	spec, err := s.BootSpec()
	if err != nil {
		return err
	}
	if len(spec.Processes) == 0 {
		return fmt.Errorf("boot must declare at least one process")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != "" {
			if code, _ := abi.ParseResult(step.Expect); code.IsError() {
				return fmt.Errorf("setup[%d]: setup steps must succeed, expect %q is an error", i, step.Expect)
			}
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks one syscall step.
func validateStep(st *Step) error {
	if st.Pid == 0 {
		return fmt.Errorf("pid is required and must be non-zero")
	}
	if st.Syscall == "" {
		return fmt.Errorf("syscall is required")
	}
	if _, ok := abi.ParseSysno(st.Syscall); !ok {
		return fmt.Errorf("unknown syscall %q", st.Syscall)
	}
	if len(st.Args) > 3 {
		return fmt.Errorf("at most three argument words, got %d", len(st.Args))
	}
	if st.Expect != "" {
		if _, ok := abi.ParseResult(st.Expect); !ok {
			return fmt.Errorf("unknown result %q", st.Expect)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertChainContains:
		if a.Commit == "" {
			return fmt.Errorf("assertions[%d]: commit is required for chain_contains", index)
		}
		if _, ok := commit.ParseType(a.Commit); !ok {
			return fmt.Errorf("assertions[%d]: unknown commit type %q", index, a.Commit)
		}
	case AssertChainOrder:
		if len(a.Commits) < 2 {
			return fmt.Errorf("assertions[%d]: chain_order needs at least two commit types", index)
		}
		for _, name := range a.Commits {
			if _, ok := commit.ParseType(name); !ok {
				return fmt.Errorf("assertions[%d]: unknown commit type %q", index, name)
			}
		}
	case AssertChainCount:
		if a.Commit == "" {
			return fmt.Errorf("assertions[%d]: commit is required for chain_count", index)
		}
		if _, ok := commit.ParseType(a.Commit); !ok {
			return fmt.Errorf("assertions[%d]: unknown commit type %q", index, a.Commit)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for chain_count", index)
		}
	case AssertFinalState:
		if a.Processes == nil && a.Endpoints == nil && len(a.Caps) == 0 {
			return fmt.Errorf("assertions[%d]: final_state needs processes, endpoints or caps", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
