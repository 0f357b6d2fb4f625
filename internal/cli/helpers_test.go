package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
	"github.com/cypher-asi/zero-os-sub006/internal/manifest"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
	"github.com/cypher-asi/zero-os-sub006/internal/testutil"
)

// seedStore boots a small kernel against a fresh store and drives two
// syscalls through it, so read-side commands have something real to
// chew on. The resulting chain holds nine commits (seqs 0-8) and the
// audit trail four events: one granted request, one denied.
func seedStore(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "zeroos.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)

	k := kernel.New(testutil.NewTestPlatform(),
		kernel.WithBootID("boot-cli-test"),
		kernel.WithSink(st))
	spec := manifest.BootSpec{
		Name: "cli-test",
		Processes: []manifest.ProcessSpec{
			{Name: "alice", Grants: []manifest.Grant{
				{Type: abi.ObjectStorage, Object: 1, Rights: abi.RightsAll},
			}},
			{Name: "bob"},
		},
	}
	require.NoError(t, k.Boot(spec))

	post(t, k, 1, abi.SysCapGrant, [3]uint64{1, 2, 3}) // alice shares storage with bob
	post(t, k, 2, abi.SysCapRevoke, [3]uint64{5})      // bob revokes an empty slot

	require.NoError(t, st.Close())
	return dbPath
}

// post drives one syscall through the gateway and discards the result.
func post(t *testing.T, k *kernel.Kernel, pid uint64, sysno abi.Sysno, args [3]uint64) {
	t.Helper()

	box, ok := k.Mailbox(abi.Pid(pid))
	require.True(t, ok)
	require.NoError(t, box.Post(sysno, args, nil))
	require.Equal(t, 1, k.PollOnce())
	_, collected := box.TryCollect()
	require.True(t, collected)
}

// emptyStore creates a store with schema but no commits.
func emptyStore(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return dbPath
}
