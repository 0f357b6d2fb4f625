package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// execute runs the root command with args and returns the command
// error and combined output.
func execute(t *testing.T, args ...string) (error, string) {
	t.Helper()
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return err, buf.String()
}

// tamper runs an UPDATE against a seeded store, for breaking the chain
// in controlled ways.
func tamper(t *testing.T, dbPath, query string, args ...any) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	res, err := st.DB().Exec(query, args...)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "tamper must hit exactly one row")
}

func TestReplayCommand_VerifiedChain(t *testing.T) {
	dbPath := seedStore(t)

	err, output := execute(t, "replay", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Replayed 9 commit(s), boot boot-cli-test")
	assert.Contains(t, output, "processes: 2 live")
	assert.Contains(t, output, "endpoints: 2 live")
	assert.Regexp(t, `state:     [0-9a-f]{64}`, output)
	assert.Contains(t, output, "✓ chain replayed and verified against recorded digests")
}

func TestReplayCommand_VerboseShowsSeqAndEvents(t *testing.T) {
	dbPath := seedStore(t)

	err, output := execute(t, "replay", "--db", dbPath, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, output, "next seq:  9")
	assert.Contains(t, output, "events:    4")
}

func TestReplayCommand_TamperedLinkage(t *testing.T) {
	dbPath := seedStore(t)
	tamper(t, dbPath, "UPDATE commits SET prev = 'beef' WHERE seq = 3")

	err, output := execute(t, "replay", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ replay stopped at seq 3")
}

func TestReplayCommand_EmptyStore(t *testing.T) {
	dbPath := emptyStore(t)

	err, output := execute(t, "replay", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Store holds no commits.")
}

func TestReplayCommand_UnreadableDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "zeroos.db")

	err, _ := execute(t, "replay", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open store")
}

func TestReplayCommand_JSON(t *testing.T) {
	dbPath := seedStore(t)

	err, output := execute(t, "replay", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var response struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "boot-cli-test", response.Data.BootID)
	assert.Equal(t, 9, response.Data.Commits)
	assert.Equal(t, 4, response.Data.Events)
	assert.Equal(t, uint64(9), response.Data.FinalSeq)
	assert.Equal(t, 2, response.Data.Processes)
	assert.Equal(t, 2, response.Data.Endpoints)
	assert.True(t, response.Data.Verified)
}

func TestReplayCommand_JSONTampered(t *testing.T) {
	dbPath := seedStore(t)
	tamper(t, dbPath, "UPDATE commits SET prev = 'beef' WHERE seq = 3")

	err, output := execute(t, "replay", "--db", dbPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string `json:"status"`
		Error  struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, ErrCodeChainBroken, response.Error.Code)
	assert.EqualValues(t, 3, response.Error.Details["seq"])
}
