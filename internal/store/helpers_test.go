package store

import (
	"path/filepath"
	"testing"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
)

// createTestStore creates a store on a temp file for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// buildTestChain seals a small but real commit chain: genesis, one
// process, its input endpoint, one capability.
func buildTestChain(t *testing.T) []commit.Commit {
	t.Helper()
	log := commit.NewLog()
	bodies := []commit.Body{
		commit.Genesis{BootID: "boot-store-test", ManifestHash: "feed"},
		commit.ProcessCreated{Pid: 1, Name: "init", Parent: abi.KernelPid},
		commit.EndpointCreated{Endpoint: 1, Owner: 1},
		commit.CapInserted{Pid: 1, Slot: 0, Cap: abi.Capability{
			ID: 1, Type: abi.ObjectEndpoint, Object: 1, Rights: abi.RightsAll,
		}},
	}
	for _, b := range bodies {
		if _, err := log.Append(b); err != nil {
			t.Fatalf("Append(%T) failed: %v", b, err)
		}
	}
	return log.All()
}

// testEvent builds one audit event with recognizable fields.
func testEvent(id abi.EventID, pid abi.Pid, kind audit.Kind) audit.Event {
	e := audit.Event{
		ID:    id,
		Pid:   pid,
		Kind:  kind,
		Sysno: abi.SysSend,
		Args:  [4]uint64{7, 8, 9, 10},
	}
	if kind == audit.KindResponse {
		e.RequestID = id - 1
		e.Result = abi.ResultPermissionDenied
		e.Detail = "missing write right"
	}
	return e
}
