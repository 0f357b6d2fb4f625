package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grantScenario is the smallest complete scenario: one grant, checked
// on the chain and the final capability tables.
func grantScenario() *Scenario {
	return &Scenario{
		Name:        "grant_basics",
		Description: "grant moves an attenuated copy",
		Boot: BootDecl{
			Name: "harness-test",
			Processes: []ProcessDecl{
				{Name: "alice", Grants: []GrantDecl{{Type: "storage", Object: 1, Rights: "rwg"}}},
				{Name: "bob"},
			},
		},
		Flow: []Step{
			{Pid: 1, Syscall: "cap_grant", Args: []uint64{1, 2, 3}},
		},
		Assertions: []Assertion{
			{Type: AssertChainContains, Commit: "cap_inserted", Fields: map[string]any{"pid": 2, "slot": 1}},
			{Type: AssertChainCount, Commit: "cap_inserted", Count: 4},
			{Type: AssertFinalState, Processes: []string{"alice", "bob"}, Caps: map[uint64]int{1: 2, 2: 2}},
		},
	}
}

func TestRun_GrantScenarioPasses(t *testing.T) {
	result, err := Run(grantScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, 1, ev.Step)
	assert.Equal(t, uint64(1), ev.Pid)
	assert.Equal(t, "cap_grant", ev.Syscall)
	assert.Equal(t, [3]uint64{1, 2, 3}, ev.Args)
	assert.Equal(t, "ok", ev.Result)

	// Genesis, two processes of three commits each, one grant apiece
	// for alice and for bob's granted copy.
	require.Len(t, result.Chain, 9)
	assert.Equal(t, ChainEntry{Seq: 0, Type: "genesis"}, result.Chain[0])
	assert.Equal(t, ChainEntry{Seq: 8, Type: "cap_inserted"}, result.Chain[8])
}

func TestRun_DeniedResultCanBeExpected(t *testing.T) {
	// alice's console capability is write-only: using it as a grant
	// source is exactly the denial the scenario asserts.
	scenario := &Scenario{
		Name:        "grant_denied",
		Description: "write-only capability cannot be a grant source",
		Boot: BootDecl{
			Name: "harness-test",
			Processes: []ProcessDecl{
				{Name: "alice", Grants: []GrantDecl{{Type: "console", Object: 0, Rights: "w"}}},
			},
		},
		Flow: []Step{
			{Pid: 1, Syscall: "cap_grant", Args: []uint64{1, 1, 1}, Expect: "permission_denied"},
		},
		Assertions: []Assertion{
			{Type: AssertChainCount, Commit: "cap_inserted", Count: 2},
			{Type: AssertFinalState, Caps: map[uint64]int{1: 2}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "permission_denied", result.Trace[0].Result)
	// Denied request, untouched chain: boot commits only.
	assert.Len(t, result.Chain, 5)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := grantScenario()
	scenario.Flow[0].Expect = "permission_denied"

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "flow step 0 (cap_grant)")
	assert.Contains(t, result.Errors[0], "result ok, expected permission_denied")
}

func TestRun_FailedAssertionReported(t *testing.T) {
	scenario := grantScenario()
	scenario.Assertions = []Assertion{
		{Type: AssertChainCount, Commit: "message_sent", Count: 99},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "assertion failed: chain_count")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := grantScenario()
	scenario.Setup = []Step{
		{Pid: 1, Syscall: "cap_inspect", Args: []uint64{9}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0")
}

func TestRun_BadBootDeclarationAborts(t *testing.T) {
	scenario := grantScenario()
	scenario.Boot.Processes[0].Grants[0].Rights = "z"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile boot declaration")
}

func TestRun_UnknownPidAborts(t *testing.T) {
	scenario := grantScenario()
	scenario.Flow[0].Pid = 9

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pid 9 has no mailbox")
}

func TestRunSuite_AggregatesOutcomes(t *testing.T) {
	dir := t.TempDir()

	passing := `
name: suite_pass
description: "genesis is always first"
boot:
  name: suite-test
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: genesis
    count: 1
`
	failing := `
name: suite_fail
description: "asserts a commit that never happens"
boot:
  name: suite-test
  processes:
    - name: alice
flow:
  - pid: 1
    syscall: endpoint_create
assertions:
  - type: chain_count
    commit: message_sent
    count: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_pass.yaml"), []byte(passing), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_fail.yaml"), []byte(failing), 0644))

	suite, err := RunSuite(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "suite_fail", suite.Failures[0].Scenario)
	assert.Contains(t, suite.Failures[0].Error, "chain_count")
}

func TestRunSuite_EmptyDirectory(t *testing.T) {
	suite, err := RunSuite(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, suite.Total)
}

func TestRunSuite_CheckedInScenarios(t *testing.T) {
	// Every scenario shipped in testdata must pass against the live
	// kernel.
	suite, err := RunSuite(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	assert.Equal(t, 4, suite.Total)
	assert.Equal(t, 4, suite.Passed, "failures: %+v", suite.Failures)
	assert.Zero(t, suite.Failed)
}
