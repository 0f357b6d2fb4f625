package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cypher-asi/zero-os-sub006/internal/hal"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// PsOptions holds flags for the ps command.
type PsOptions struct {
	*RootOptions
	Database string
}

// CapRecord is one occupied capability slot shaped for output.
type CapRecord struct {
	Slot   uint64 `json:"slot"`
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	Object uint64 `json:"object"`
	Rights string `json:"rights"`
}

// ProcessRecord is one process table row shaped for output.
type ProcessRecord struct {
	Pid       uint64      `json:"pid"`
	Name      string      `json:"name"`
	Parent    uint64      `json:"parent"`
	Syscalls  uint64      `json:"syscalls"`
	Endpoints []uint64    `json:"endpoints"`
	Caps      []CapRecord `json:"caps"`
}

// PsResult holds the process table snapshot.
type PsResult struct {
	BootID    string          `json:"boot_id"`
	Seq       uint64          `json:"seq"`
	StateHash string          `json:"state_hash"`
	Processes []ProcessRecord `json:"processes"`
}

// NewPsCommand creates the ps command.
func NewPsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List processes and capabilities from a store",
		Long: `Rebuild the process table from a persisted chain and list it.

The chain is verified while loading. Each process is shown with its
owned endpoints and, with --verbose, every capability slot it holds.

Examples:
  zeroos ps --db ./zeroos.db
  zeroos ps --db ./zeroos.db --verbose
  zeroos ps --db ./zeroos.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPs(opts *PsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	commits, _, events, err := st.LoadBoot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load store", err)
	}

	if len(commits) == 0 {
		if opts.Format == "json" {
			return outputPsJSON(cmd, PsResult{Processes: []ProcessRecord{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Store holds no commits.")
		return nil
	}

	k, err := kernel.Restore(hal.NewHostPlatform(), commits, events)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to restore kernel", err)
	}

	result := PsResult{
		BootID:    k.BootID(),
		Seq:       k.Seq(),
		StateHash: k.StateHash(),
	}
	for _, p := range k.Processes() {
		rec := ProcessRecord{
			Pid:       uint64(p.Pid),
			Name:      p.Name,
			Parent:    uint64(p.Parent),
			Syscalls:  p.Syscalls,
			Endpoints: make([]uint64, 0, len(p.Endpoints)),
			Caps:      make([]CapRecord, 0, p.Caps),
		}
		for _, ep := range p.Endpoints {
			rec.Endpoints = append(rec.Endpoints, uint64(ep))
		}
		for _, ci := range k.CapsOf(p.Pid) {
			rec.Caps = append(rec.Caps, CapRecord{
				Slot:   uint64(ci.Slot),
				ID:     uint64(ci.Cap.ID),
				Type:   ci.Cap.Type.String(),
				Object: ci.Cap.Object,
				Rights: ci.Cap.Rights.String(),
			})
		}
		result.Processes = append(result.Processes, rec)
	}

	if opts.Format == "json" {
		return outputPsJSON(cmd, result)
	}
	return outputPsText(cmd, result, opts.Verbose)
}

// outputPsJSON outputs the process table as JSON.
func outputPsJSON(cmd *cobra.Command, result PsResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputPsText outputs the process table as text.
func outputPsText(cmd *cobra.Command, result PsResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Boot %s, next seq %d\n", result.BootID, result.Seq)
	fmt.Fprintf(w, "State %s\n", result.StateHash)
	fmt.Fprintln(w)

	if len(result.Processes) == 0 {
		fmt.Fprintln(w, "No live processes.")
		return nil
	}

	fmt.Fprintf(w, "%-5s %-16s %-7s %-5s %-9s %s\n", "PID", "NAME", "PARENT", "CAPS", "SYSCALLS", "ENDPOINTS")
	for _, p := range result.Processes {
		fmt.Fprintf(w, "%-5d %-16s %-7d %-5d %-9d %v\n", p.Pid, p.Name, p.Parent, len(p.Caps), p.Syscalls, p.Endpoints)
		if verbose {
			for _, c := range p.Caps {
				fmt.Fprintf(w, "      [slot %d] %s:%d %s (cap %d)\n", c.Slot, c.Type, c.Object, c.Rights, c.ID)
			}
		}
	}
	return nil
}
