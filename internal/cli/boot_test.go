package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

func writeManifest(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boot.cue"), []byte(src), 0644))
	return dir
}

const bootManifest = `
boot: {
	name: "cli-boot"
	processes: [
		{name: "echo-server", program: "echo"},
		{name: "watcher", program: "idle"},
	]
}
`

// runGateway executes the boot command with a deadline so the gateway
// shuts itself down, and returns the command error and its output.
func runGateway(t *testing.T, args ...string) (error, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		return err, buf.String()
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down after context deadline")
		return nil, ""
	}
}

func TestBootCommand_MissingManifestDir(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"boot", filepath.Join(t.TempDir(), "nope")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load boot manifest")
}

func TestBootCommand_BadManifest(t *testing.T) {
	dir := writeManifest(t, `boot: {processes: []}`)

	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"boot", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "name is required")
}

func TestBootCommand_BadConfig(t *testing.T) {
	dir := writeManifest(t, bootManifest)
	cfgPath := writeConfig(t, "max_queue: 8\n")

	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"boot", dir, "--config", cfgPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load daemon config")
}

func TestBootCommand_RunsUntilCancelled(t *testing.T) {
	dir := writeManifest(t, bootManifest)

	err, output := runGateway(t, "boot", dir)
	require.NoError(t, err, "deadline shutdown must not be an error")
	assert.Contains(t, output, "Gateway running")
	assert.Contains(t, output, "2 process(es)")
	assert.Contains(t, output, "Press Ctrl-C to stop.")
}

func TestBootCommand_PersistsCommits(t *testing.T) {
	dir := writeManifest(t, bootManifest)
	dbPath := filepath.Join(t.TempDir(), "boot.db")

	err, output := runGateway(t, "boot", dir, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Gateway running")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	commits, ledger, _, err := st.LoadBoot(context.Background())
	require.NoError(t, err)

	// Genesis plus process_created, endpoint_created, and the input
	// capability for each of the two processes.
	require.Len(t, commits, 7)
	assert.Len(t, ledger, 7)
	assert.Equal(t, commit.TypeGenesis, commits[0].Type())
	assert.Equal(t, uint64(0), commits[0].Seq)
}

func TestBootCommand_WithDaemonConfig(t *testing.T) {
	dir := writeManifest(t, bootManifest)
	cfgPath := writeConfig(t, "max_queue_depth: 4\nmax_message_size: 1024\n")

	err, output := runGateway(t, "boot", dir, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Gateway running")
}
