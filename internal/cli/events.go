package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	Pid      uint64
	Limit    int
}

// EventRecord is one audit event shaped for output.
type EventRecord struct {
	ID        uint64   `json:"id"`
	Pid       uint64   `json:"pid"`
	Kind      string   `json:"kind"`
	Syscall   string   `json:"syscall,omitempty"`
	Args      []uint64 `json:"args,omitempty"`
	RequestID uint64   `json:"request_id,omitempty"`
	Result    string   `json:"result,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// EventsResult holds the events listing.
type EventsResult struct {
	Total  int           `json:"total"`
	Events []EventRecord `json:"events"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Dump the persisted audit trail",
		Long: `List the syscall audit events a store holds, oldest first.

Every syscall produced a request event before execution and a response
event after, stitched by the request's event id. Payload bytes are
never recorded, so this is safe to read on any store.

Examples:
  zeroos events --db ./zeroos.db
  zeroos events --db ./zeroos.db --pid 2
  zeroos events --db ./zeroos.db --tail 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Uint64Var(&opts.Pid, "pid", 0, "only events for this pid")
	cmd.Flags().IntVar(&opts.Limit, "tail", 0, "only the newest N events")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	var events []audit.Event
	if opts.Pid != 0 {
		events, err = st.EventsForPid(ctx, abi.Pid(opts.Pid))
	} else {
		events, err = st.Events(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	total := len(events)
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[len(events)-opts.Limit:]
	}

	result := EventsResult{Total: total, Events: make([]EventRecord, 0, len(events))}
	for _, e := range events {
		result.Events = append(result.Events, toEventRecord(e))
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	return outputEventsText(cmd, result)
}

// toEventRecord shapes an audit event for output. Request and response
// events populate different halves of the record.
func toEventRecord(e audit.Event) EventRecord {
	rec := EventRecord{
		ID:   uint64(e.ID),
		Pid:  uint64(e.Pid),
		Kind: e.Kind.String(),
	}
	switch e.Kind {
	case audit.KindRequest:
		rec.Syscall = e.Sysno.String()
		rec.Args = []uint64{e.Args[0], e.Args[1], e.Args[2], e.Args[3]}
	case audit.KindResponse:
		rec.RequestID = uint64(e.RequestID)
		rec.Result = e.Result.String()
		rec.Detail = e.Detail
	}
	return rec
}

// outputEventsText outputs the events listing as text.
func outputEventsText(cmd *cobra.Command, result EventsResult) error {
	w := cmd.OutOrStdout()

	if len(result.Events) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return nil
	}

	if result.Total > len(result.Events) {
		fmt.Fprintf(w, "Showing %d of %d event(s)\n", len(result.Events), result.Total)
	} else {
		fmt.Fprintf(w, "%d event(s)\n", result.Total)
	}

	for _, rec := range result.Events {
		switch rec.Kind {
		case "request":
			fmt.Fprintf(w, "[%d] pid %d request  %s args=%v\n", rec.ID, rec.Pid, rec.Syscall, rec.Args)
		case "response":
			line := fmt.Sprintf("[%d] pid %d response %s (req %d)", rec.ID, rec.Pid, rec.Result, rec.RequestID)
			if rec.Detail != "" {
				line += ": " + rec.Detail
			}
			fmt.Fprintln(w, line)
		default:
			fmt.Fprintf(w, "[%d] pid %d %s\n", rec.ID, rec.Pid, rec.Kind)
		}
	}
	return nil
}
