package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// writeScenario writes scenario YAML to a temp file and returns its
// path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: grant_basics
description: "Grant moves an attenuated copy"
boot:
  name: test-boot
  processes:
    - name: alice
      grants:
        - { type: storage, object: 1, rights: rwg }
    - name: bob
setup:
  - pid: 1
    syscall: endpoint_create
flow:
  - pid: 1
    syscall: cap_grant
    args: [1, 2, 3]
    expect: ok
assertions:
  - type: chain_contains
    commit: cap_inserted
    fields: { pid: 2 }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "grant_basics", scenario.Name)
	assert.Equal(t, "Grant moves an attenuated copy", scenario.Description)
	assert.Equal(t, "test-boot", scenario.Boot.Name)
	require.Len(t, scenario.Boot.Processes, 2)
	require.Len(t, scenario.Boot.Processes[0].Grants, 1)
	assert.Equal(t, "storage", scenario.Boot.Processes[0].Grants[0].Type)
	assert.Equal(t, "rwg", scenario.Boot.Processes[0].Grants[0].Rights)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, "endpoint_create", scenario.Setup[0].Syscall)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, "cap_grant", scenario.Flow[0].Syscall)
	assert.Equal(t, []uint64{1, 2, 3}, scenario.Flow[0].Args)
	assert.Equal(t, "ok", scenario.Flow[0].Expect)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertChainContains, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario file")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	// "flows" is a typo for "flow"; strict decoding must catch it.
	path := writeScenario(t, `
name: typo
description: "typo scenario"
boot:
  name: test-boot
  processes:
    - name: alice
flows:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flows")
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "no name"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: no_description
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "description is required",
		},
		{
			name: "no boot processes",
			content: `
name: no_processes
description: "boot has nobody"
boot:
  name: test-boot
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "at least one process",
		},
		{
			name: "empty flow",
			content: `
name: no_flow
description: "nothing to do"
boot:
  name: test-boot
  processes:
    - name: alice
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "flow list is required",
		},
		{
			name: "no assertions",
			content: `
name: no_assertions
description: "nothing to check"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
`,
			wantErr: "assertions list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_BootValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown object type",
			content: `
name: bad_grant
description: "grant on an unknown object"
boot:
  name: test-boot
  processes:
    - name: alice
      grants:
        - { type: disk, object: 1, rights: rw }
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: `unknown object type "disk"`,
		},
		{
			name: "bad rights string",
			content: `
name: bad_rights
description: "rights flag that does not exist"
boot:
  name: test-boot
  processes:
    - name: alice
      grants:
        - { type: storage, object: 1, rights: rx }
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "invalid rights",
		},
		{
			name: "duplicate process",
			content: `
name: dup_process
description: "same process twice"
boot:
  name: test-boot
  processes:
    - name: alice
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_StepValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown syscall",
			content: `
name: bad_syscall
description: "no such syscall"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: teleport
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: `unknown syscall "teleport"`,
		},
		{
			name: "unknown result",
			content: `
name: bad_expect
description: "no such result"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
    expect: nope
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: `unknown result "nope"`,
		},
		{
			name: "zero pid",
			content: `
name: zero_pid
description: "pid zero is the kernel"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 0
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "pid is required",
		},
		{
			name: "too many args",
			content: `
name: arg_overflow
description: "four argument words"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: cap_grant
    args: [1, 2, 3, 4]
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "at most three argument words",
		},
		{
			name: "setup expecting an error",
			content: `
name: failing_setup
description: "setup may not expect failure"
boot:
  name: test-boot
  processes:
    - name: alice
setup:
  - pid: 1
    syscall: cap_inspect
    args: [9]
    expect: invalid_capability
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`,
			wantErr: "setup steps must succeed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionValidation(t *testing.T) {
	// Wraps one assertion block into an otherwise valid scenario.
	wrap := func(assertion string) string {
		return `
name: assertion_check
description: "assertion validation"
boot:
  name: test-boot
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
` + assertion
	}

	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{
			name:      "unknown type",
			assertion: "  - type: trace_contains\n",
			wantErr:   `unknown assertion type "trace_contains"`,
		},
		{
			name:      "chain_contains without commit",
			assertion: "  - type: chain_contains\n",
			wantErr:   "commit is required for chain_contains",
		},
		{
			name:      "chain_contains unknown commit type",
			assertion: "  - type: chain_contains\n    commit: snapshot\n",
			wantErr:   `unknown commit type "snapshot"`,
		},
		{
			name:      "chain_order too short",
			assertion: "  - type: chain_order\n    commits: [genesis]\n",
			wantErr:   "at least two commit types",
		},
		{
			name:      "chain_count negative",
			assertion: "  - type: chain_count\n    commit: genesis\n    count: -1\n",
			wantErr:   "count must be non-negative",
		},
		{
			name:      "final_state with nothing to check",
			assertion: "  - type: final_state\n",
			wantErr:   "needs processes, endpoints or caps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, wrap(tt.assertion)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenario_BootSpecCompiles(t *testing.T) {
	scenario := &Scenario{
		Boot: BootDecl{
			Name: "compile-test",
			Processes: []ProcessDecl{
				{
					Name:    "alice",
					Program: "shell",
					Grants: []GrantDecl{
						{Type: "storage", Object: 1, Rights: "rwg"},
						{Type: "console", Object: 0, Rights: "w"},
					},
				},
			},
		},
	}

	spec, err := scenario.BootSpec()
	require.NoError(t, err)

	assert.Equal(t, "compile-test", spec.Name)
	require.Len(t, spec.Processes, 1)
	assert.Equal(t, "shell", spec.Processes[0].Program)
	require.Len(t, spec.Processes[0].Grants, 2)
	assert.Equal(t, abi.ObjectStorage, spec.Processes[0].Grants[0].Type)
	assert.Equal(t, abi.Rights{Read: true, Write: true, Grant: true}, spec.Processes[0].Grants[0].Rights)
	assert.Equal(t, abi.Rights{Write: true}, spec.Processes[0].Grants[1].Rights)
}
