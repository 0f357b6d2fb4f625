package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
	"github.com/cypher-asi/zero-os-sub006/internal/manifest"
	"github.com/cypher-asi/zero-os-sub006/internal/testutil"
)

// testChain builds a small sealed chain for chain assertions: genesis,
// one process with its input endpoint and capability, one delivery.
func testChain(t *testing.T) []commit.Commit {
	t.Helper()

	log := commit.NewLog()
	bodies := []commit.Body{
		commit.Genesis{BootID: "boot-1", ManifestHash: "aa"},
		commit.ProcessCreated{Pid: 1, Name: "alice", Parent: abi.KernelPid},
		commit.EndpointCreated{Endpoint: 1, Owner: 1},
		commit.CapInserted{Pid: 1, Slot: 0, Cap: abi.Capability{
			ID: 1, Type: abi.ObjectEndpoint, Object: 1, Rights: abi.RightsAll,
		}},
		commit.MessageSent{From: 1, Endpoint: 1, To: 1, Tag: 7, Size: 4, Caps: 0},
	}
	for _, b := range bodies {
		_, err := log.Append(b)
		require.NoError(t, err)
	}
	return log.All()
}

// bootedKernel brings up a two-process kernel for final-state checks.
func bootedKernel(t *testing.T) *kernel.Kernel {
	t.Helper()

	k := kernel.New(testutil.NewTestPlatform(), kernel.WithBootID("boot-assert"))
	spec := manifest.BootSpec{
		Name: "assert-test",
		Processes: []manifest.ProcessSpec{
			{Name: "alice", Grants: []manifest.Grant{
				{Type: abi.ObjectConsole, Object: abi.ConsoleMain, Rights: abi.Rights{Write: true}},
			}},
			{Name: "bob"},
		},
	}
	require.NoError(t, k.Boot(spec))
	return k
}

func TestChainContains_MatchesFields(t *testing.T) {
	chain := testChain(t)

	err := assertChainContains(chain, Assertion{
		Type:   AssertChainContains,
		Commit: "process_created",
		Fields: map[string]any{"pid": 1, "name": "alice"},
	})
	assert.NoError(t, err)
}

func TestChainContains_NestedCapObject(t *testing.T) {
	chain := testChain(t)

	err := assertChainContains(chain, Assertion{
		Type:   AssertChainContains,
		Commit: "cap_inserted",
		Fields: map[string]any{
			"pid":  1,
			"slot": 0,
			"cap":  map[string]any{"id": 1, "type": 1, "object": 1, "rights": 7},
		},
	})
	assert.NoError(t, err)
}

func TestChainContains_PresenceOnly(t *testing.T) {
	chain := testChain(t)

	err := assertChainContains(chain, Assertion{
		Type:   AssertChainContains,
		Commit: "message_sent",
	})
	assert.NoError(t, err)
}

func TestChainContains_Mismatch(t *testing.T) {
	chain := testChain(t)

	err := assertChainContains(chain, Assertion{
		Type:   AssertChainContains,
		Commit: "process_created",
		Fields: map[string]any{"name": "bob"},
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertChainContains, ae.Type)
	assert.Equal(t, "not found in chain", ae.Actual)
}

func TestChainOrder_Pass(t *testing.T) {
	chain := testChain(t)

	err := assertChainOrder(chain, Assertion{
		Type:    AssertChainOrder,
		Commits: []string{"genesis", "process_created", "message_sent"},
	})
	assert.NoError(t, err)
}

func TestChainOrder_OutOfOrder(t *testing.T) {
	chain := testChain(t)

	err := assertChainOrder(chain, Assertion{
		Type:    AssertChainOrder,
		Commits: []string{"message_sent", "genesis"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message_sent (seq 4) should be before genesis (seq 0)")
}

func TestChainOrder_MissingType(t *testing.T) {
	chain := testChain(t)

	err := assertChainOrder(chain, Assertion{
		Type:    AssertChainOrder,
		Commits: []string{"genesis", "process_exited"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing commit type: process_exited")
}

func TestChainCount(t *testing.T) {
	chain := testChain(t)

	assert.NoError(t, assertChainCount(chain, Assertion{
		Type: AssertChainCount, Commit: "cap_inserted", Count: 1,
	}))
	assert.NoError(t, assertChainCount(chain, Assertion{
		Type: AssertChainCount, Commit: "process_exited", Count: 0,
	}))

	err := assertChainCount(chain, Assertion{
		Type: AssertChainCount, Commit: "message_sent", Count: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of message_sent")
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestFinalState_AgainstBootedKernel(t *testing.T) {
	k := bootedKernel(t)
	two := 2

	err := assertFinalState(k, Assertion{
		Type:      AssertFinalState,
		Processes: []string{"alice", "bob"},
		Endpoints: &two,
		Caps:      map[uint64]int{1: 2, 2: 1},
	})
	assert.NoError(t, err)
}

func TestFinalState_WrongProcessList(t *testing.T) {
	k := bootedKernel(t)

	err := assertFinalState(k, Assertion{
		Type:      AssertFinalState,
		Processes: []string{"alice"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live processes [alice]")
	assert.Contains(t, err.Error(), "live processes [alice bob]")
}

func TestFinalState_WrongCapCount(t *testing.T) {
	k := bootedKernel(t)

	err := assertFinalState(k, Assertion{
		Type: AssertFinalState,
		Caps: map[uint64]int{2: 5},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pid 2 holding 5 capabilities")
	assert.Contains(t, err.Error(), "pid 2 holding 1 capabilities")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	k := bootedKernel(t)
	result := NewResult()

	msgs := EvaluateAssertions(result, []Assertion{
		{Type: AssertChainContains, Commit: "genesis"},
		{Type: AssertChainCount, Commit: "message_sent", Count: 3},
		{Type: "trace_matches"},
	}, &AssertionContext{Kernel: k})

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "assertion failed: chain_count")
	assert.Contains(t, msgs[1], `unknown assertion type "trace_matches"`)
}

func TestEvaluateAssertions_FinalStateNeedsKernel(t *testing.T) {
	result := NewResult()

	msgs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Processes: []string{"alice"}},
	}, nil)

	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "final_state requires a kernel context")
}

func TestAssertionError_IncludesChainOutline(t *testing.T) {
	ae := &AssertionError{
		Type:     AssertChainCount,
		Expected: "3 occurrences of message_sent",
		Actual:   "1 occurrences",
		Chain:    testChain(t),
	}

	msg := ae.Error()
	assert.Contains(t, msg, "assertion failed: chain_count")
	assert.Contains(t, msg, "expected: 3 occurrences of message_sent")
	assert.Contains(t, msg, "actual: 1 occurrences")
	assert.Contains(t, msg, "[0] genesis")
	assert.Contains(t, msg, "[4] message_sent")
}
