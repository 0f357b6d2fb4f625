package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cypher-asi/zero-os-sub006/internal/replay"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayResult holds the outcome of replaying a persisted chain.
type ReplayResult struct {
	BootID    string `json:"boot_id"`
	Commits   int    `json:"commits"`
	Events    int    `json:"events"`
	FinalSeq  uint64 `json:"final_seq"`
	StateHash string `json:"state_hash"`
	Processes int    `json:"processes"`
	Endpoints int    `json:"endpoints"`
	Verified  bool   `json:"verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild kernel state from a persisted chain",
		Long: `Replay a persisted commit chain and report the state it rebuilds to.

Every commit is re-applied through the same transition the live gateway
used, while its seal and the recorded state digest are checked along
the way. The final report shows what the store holds: boot identity,
live processes and endpoints, and the state digest.

Exit codes:
  0 - Chain replayed and verified
  1 - Replay diverged from the recorded evidence
  2 - Command error (database not found, etc.)

Examples:
  zeroos replay --db ./zeroos.db
  zeroos replay --db ./zeroos.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	commits, ledger, events, err := st.LoadBoot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load store", err)
	}

	if len(commits) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Verified: true}, nil)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Store holds no commits.")
		return nil
	}

	result := ReplayResult{
		Commits: len(commits),
		Events:  len(events),
	}

	final, err := replay.ReplayAndVerify(commits, ledger)
	if err != nil {
		re, ok := replay.AsError(err)
		if !ok {
			return WrapExitError(ExitFailure, "replay failed", err)
		}
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result, re)
		}
		return outputReplayFailure(cmd, re)
	}

	result.BootID = final.BootID
	result.FinalSeq = final.Seq
	result.StateHash = final.Hash()
	result.Processes = len(final.Pids())
	result.Endpoints = len(final.EndpointIDs())
	result.Verified = true

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result, nil)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult, re *replay.Error) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if re != nil {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeChainBroken,
			Message: re.Error(),
			Details: map[string]any{"seq": re.Seq, "error_code": string(re.Code)},
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if re != nil {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replayed %d commit(s), boot %s\n", result.Commits, result.BootID)
	fmt.Fprintf(w, "  processes: %d live\n", result.Processes)
	fmt.Fprintf(w, "  endpoints: %d live\n", result.Endpoints)
	fmt.Fprintf(w, "  state:     %s\n", result.StateHash)
	if verbose {
		fmt.Fprintf(w, "  next seq:  %d\n", result.FinalSeq)
		fmt.Fprintf(w, "  events:    %d\n", result.Events)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "✓ chain replayed and verified against recorded digests")
	return nil
}

// outputReplayFailure reports a replay divergence as text.
func outputReplayFailure(cmd *cobra.Command, re *replay.Error) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✗ replay stopped at seq %d: %s\n", re.Seq, re.Error())
	return NewExitError(ExitFailure, "replay verification failed")
}
