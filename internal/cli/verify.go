package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/replay"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
}

// VerifyResult holds the outcome of the two verification phases.
type VerifyResult struct {
	Commits       int     `json:"commits"`
	LedgerEntries int     `json:"ledger_entries"`
	Head          string  `json:"head,omitempty"`
	ChainOK       bool    `json:"chain_ok"`
	LedgerOK      bool    `json:"ledger_ok"`
	FailedSeq     *uint64 `json:"failed_seq,omitempty"`
	Failure       string  `json:"failure,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a persisted chain's integrity",
		Long: `Verify a persisted commit chain without rebuilding anything visible.

Two phases:
  1. Chain: every commit's seal is recomputed and its link to the
     previous commit checked. A single altered byte fails here.
  2. Ledger: commits are re-applied and the state digest after each
     step compared against the recorded evidence.

Exit codes:
  0 - Chain and ledger verified
  1 - Verification failed (the first bad seq is reported)
  2 - Command error (database not found, etc.)

Examples:
  zeroos verify --db ./zeroos.db
  zeroos verify --db ./zeroos.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	commits, err := st.LoadCommits(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load commits", err)
	}
	ledger, err := st.LoadLedger(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ledger", err)
	}

	if len(commits) == 0 {
		if opts.Format == "json" {
			return outputVerifyJSON(cmd, VerifyResult{ChainOK: true, LedgerOK: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Store holds no commits.")
		return nil
	}

	result := VerifyResult{
		Commits:       len(commits),
		LedgerEntries: len(ledger),
	}

	// Phase 1: seals and linkage.
	log, err := commit.Restore(abi.ZeroHash, commits)
	if err != nil {
		result.Failure = err.Error()
		var mm *commit.MismatchError
		if errors.As(err, &mm) {
			result.FailedSeq = &mm.Seq
		}
		return outputVerify(cmd, opts, result)
	}
	result.ChainOK = true
	result.Head = log.Head()

	// Phase 2: state digests against the ledger.
	if _, err := replay.ReplayAndVerify(commits, ledger); err != nil {
		result.Failure = err.Error()
		if re, ok := replay.AsError(err); ok {
			result.FailedSeq = &re.Seq
		}
		return outputVerify(cmd, opts, result)
	}
	result.LedgerOK = true

	return outputVerify(cmd, opts, result)
}

func outputVerify(cmd *cobra.Command, opts *VerifyOptions, result VerifyResult) error {
	if opts.Format == "json" {
		return outputVerifyJSON(cmd, result)
	}
	return outputVerifyText(cmd, result)
}

// outputVerifyJSON outputs the verify result as JSON.
func outputVerifyJSON(cmd *cobra.Command, result VerifyResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.ChainOK || !result.LedgerOK {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeChainBroken,
			Message: result.Failure,
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.ChainOK || !result.LedgerOK {
		return NewExitError(ExitFailure, "verification failed")
	}
	return nil
}

// outputVerifyText outputs the verify result as text.
func outputVerifyText(cmd *cobra.Command, result VerifyResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Verifying %d commit(s), %d ledger entr(ies)\n", result.Commits, result.LedgerEntries)

	if !result.ChainOK {
		fmt.Fprintf(w, "✗ chain: %s\n", result.Failure)
		return NewExitError(ExitFailure, "verification failed")
	}
	fmt.Fprintf(w, "✓ chain: seals and linkage intact, head %s\n", result.Head)

	if !result.LedgerOK {
		fmt.Fprintf(w, "✗ ledger: %s\n", result.Failure)
		return NewExitError(ExitFailure, "verification failed")
	}
	fmt.Fprintln(w, "✓ ledger: state digests match recorded evidence")
	return nil
}
