package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
	"github.com/cypher-asi/zero-os-sub006/internal/testutil"
)

// defaultBootID is the boot identifier scenarios run under when they
// do not pin one. Fixed so golden traces never depend on generated
// identity.
const defaultBootID = "boot-harness"

// Harness drives one scenario through a live kernel on an inert test
// platform. Processes never run as goroutines here; the harness posts
// their syscalls itself, so every interleaving is explicit and the
// trace is deterministic.
type Harness struct {
	kernel   *kernel.Kernel
	platform *testutil.TestPlatform
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh kernel with a fixed boot id for
// isolation and reproducibility.
//
// Execution flow:
//  1. Compile the boot declaration and boot a fresh kernel
//  2. Execute setup steps (all must succeed)
//  3. Execute flow steps, checking each expect clause
//  4. Evaluate assertions against the chain and final state
//  5. Re-verify the commit chain
func Run(scenario *Scenario) (*Result, error) {
	spec, err := scenario.BootSpec()
	if err != nil {
		return nil, fmt.Errorf("compile boot declaration: %w", err)
	}

	bootID := scenario.BootID
	if bootID == "" {
		bootID = defaultBootID
	}

	platform := testutil.NewTestPlatform()
	k := kernel.New(platform, kernel.WithBootID(bootID))
	if err := k.Boot(spec); err != nil {
		return nil, fmt.Errorf("boot scenario kernel: %w", err)
	}

	h := &Harness{
		kernel:   k,
		platform: platform,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // quiet in tests
	}

	result := NewResult()
	pos := 0

	// Setup steps establish preconditions; any failure aborts the
	// scenario rather than failing it.
	for i, step := range scenario.Setup {
		pos++
		code, err := h.exec(step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.addTrace(pos, step.Pid, step.Syscall, postedArgs(step), code.String())
		if expected := step.Expect; expected != "" {
			if code.String() != expected {
				return nil, fmt.Errorf("setup step %d (%s): result %s, expected %s", i, step.Syscall, code, expected)
			}
		} else if code.IsError() {
			return nil, fmt.Errorf("setup step %d (%s): %s", i, step.Syscall, code)
		}
		h.logger.Debug("setup step completed", "step", i, "syscall", step.Syscall, "result", code.String())
	}

	for i, step := range scenario.Flow {
		pos++
		code, err := h.exec(step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.addTrace(pos, step.Pid, step.Syscall, postedArgs(step), code.String())

		expected := step.Expect
		if expected == "" {
			expected = abi.ResultOK.String()
		}
		if code.String() != expected {
			result.AddError(fmt.Sprintf("flow step %d (%s): result %s, expected %s", i, step.Syscall, code, expected))
		}
		h.logger.Debug("flow step completed", "step", i, "syscall", step.Syscall, "result", code.String())
	}

	actx := &AssertionContext{Kernel: k}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	// Every scenario must leave a chain that replays to the same
	// state digests, whatever its assertions say.
	if err := k.Verify(); err != nil {
		result.AddError(fmt.Sprintf("chain verification: %v", err))
	}

	for _, c := range k.Commits() {
		result.Chain = append(result.Chain, ChainEntry{Seq: c.Seq, Type: c.Body.Kind().String()})
	}

	return result, nil
}

// exec posts one syscall, runs the gateway for exactly one request,
// and collects the result.
func (h *Harness) exec(step Step) (abi.ResultCode, error) {
	box, ok := h.kernel.Mailbox(abi.Pid(step.Pid))
	if !ok {
		return 0, fmt.Errorf("pid %d has no mailbox", step.Pid)
	}

	sysno, ok := abi.ParseSysno(step.Syscall)
	if !ok {
		return 0, fmt.Errorf("unknown syscall %q", step.Syscall)
	}

	if err := box.Post(sysno, postedArgs(step), []byte(step.Data)); err != nil {
		return 0, fmt.Errorf("post %s: %w", step.Syscall, err)
	}
	if n := h.kernel.PollOnce(); n != 1 {
		return 0, fmt.Errorf("gateway served %d requests, expected 1", n)
	}
	res, ok := box.TryCollect()
	if !ok {
		return 0, fmt.Errorf("no result for %s", step.Syscall)
	}
	return res.Code, nil
}

// postedArgs pads a step's argument words to the three the ABI posts.
func postedArgs(step Step) [3]uint64 {
	var args [3]uint64
	copy(args[:], step.Args)
	return args
}
