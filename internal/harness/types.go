package harness

// TraceEvent records one executed syscall: who called what, with which
// argument words, and the named result. Traces carry names and logical
// positions only, never hashes, so golden files stay stable across
// unrelated changes.
type TraceEvent struct {
	// Step is the 1-based execution position, counted across setup
	// and flow.
	Step int `json:"step"`

	// Pid is the calling process.
	Pid uint64 `json:"pid"`

	// Syscall is the syscall name.
	Syscall string `json:"syscall"`

	// Args are the three posted argument words.
	Args [3]uint64 `json:"args"`

	// Result is the name of the result the gateway returned.
	Result string `json:"result"`
}

// ChainEntry is one commit in the result's chain outline: its seq and
// type name, no hashes.
type ChainEntry struct {
	Seq  uint64 `json:"seq"`
	Type string `json:"type"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause matched,
	// every assertion held, and the commit chain re-verified.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Chain outlines the commit chain the scenario sealed.
	Chain []ChainEntry `json:"chain"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Chain:  []ChainEntry{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends one executed step to the trace.
func (r *Result) addTrace(step int, pid uint64, syscall string, args [3]uint64, result string) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Pid:     pid,
		Syscall: syscall,
		Args:    args,
		Result:  result,
	})
}
