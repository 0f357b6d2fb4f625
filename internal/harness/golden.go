package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// TraceSnapshot captures a scenario execution for golden comparison.
// It holds names and logical positions only: no commit hashes, no
// state digests. Digest integrity is checked live by Run; keeping it
// out of the snapshot means golden files don't churn when encoding
// internals move.
type TraceSnapshot struct {
	Scenario string
	BootID   string
	Trace    []TraceEvent
	Chain    []ChainEntry
}

// toCanonical converts the snapshot into the canonical value form so
// the golden bytes are byte-stable: sorted keys, fixed integer
// rendering, no insignificant whitespace.
func (s *TraceSnapshot) toCanonical() abi.Obj {
	trace := make(abi.Arr, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = abi.Obj{
			"step":    abi.Int(int64(ev.Step)),
			"pid":     abi.U64(ev.Pid),
			"syscall": abi.Str(ev.Syscall),
			"args":    abi.Arr{abi.U64(ev.Args[0]), abi.U64(ev.Args[1]), abi.U64(ev.Args[2])},
			"result":  abi.Str(ev.Result),
		}
	}

	chain := make(abi.Arr, len(s.Chain))
	for i, c := range s.Chain {
		chain[i] = abi.Obj{
			"seq":  abi.U64(c.Seq),
			"type": abi.Str(c.Type),
		}
	}

	return abi.Obj{
		"scenario": abi.Str(s.Scenario),
		"boot_id":  abi.Str(s.BootID),
		"trace":    trace,
		"chain":    chain,
	}
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; a trace mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an already-obtained result against the
// scenario's golden file. Useful when the caller wants to inspect the
// result before the golden comparison.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	bootID := scenario.BootID
	if bootID == "" {
		bootID = defaultBootID
	}
	snapshot := TraceSnapshot{
		Scenario: scenario.Name,
		BootID:   bootID,
		Trace:    result.Trace,
		Chain:    result.Chain,
	}

	traceJSON, err := abi.MarshalCanonical(snapshot.toCanonical())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
