package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
)

// AssertionError is returned when an assertion fails. It includes the
// commit chain outline so the failure can be read without re-running
// the scenario.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Chain    []commit.Commit // Chain at evaluation time, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	if len(e.Chain) > 0 {
		fmt.Fprintf(&buf, "\ncommit chain:\n")
		for _, c := range e.Chain {
			fmt.Fprintf(&buf, "  [%d] %s\n", c.Seq, c.Body.Kind())
		}
	}

	return buf.String()
}

// assertChainContains checks that the chain holds a commit of the
// given type whose body matches the expected fields (subset match).
func assertChainContains(chain []commit.Commit, assertion Assertion) error {
	want, _ := commit.ParseType(assertion.Commit)
	for _, c := range chain {
		if c.Body.Kind() != want {
			continue
		}
		ok, err := bodyMatches(c.Body, assertion.Fields)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertChainContains,
		Expected: fmt.Sprintf("commit %s with fields %v", assertion.Commit, assertion.Fields),
		Actual:   "not found in chain",
		Chain:    chain,
	}
}

// assertChainOrder checks that commit types first appear in the given
// order. Types don't need to be consecutive; intervening commits are
// allowed.
func assertChainOrder(chain []commit.Commit, assertion Assertion) error {
	// First seq of each expected type. Genesis sits at seq zero, so
	// presence is tracked apart from position.
	positions := make(map[string]uint64)
	seen := make(map[string]bool)
	for _, c := range chain {
		name := c.Body.Kind().String()
		for _, expected := range assertion.Commits {
			if name == expected && !seen[expected] {
				seen[expected] = true
				positions[expected] = c.Seq
			}
		}
	}

	for _, name := range assertion.Commits {
		if !seen[name] {
			return &AssertionError{
				Type:     AssertChainOrder,
				Expected: fmt.Sprintf("all commit types present: %v", assertion.Commits),
				Actual:   fmt.Sprintf("missing commit type: %s", name),
				Chain:    chain,
			}
		}
	}

	for i := 1; i < len(assertion.Commits); i++ {
		prev := assertion.Commits[i-1]
		curr := assertion.Commits[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertChainOrder,
				Expected: fmt.Sprintf("commit types in order: %v", assertion.Commits),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Chain: chain,
			}
		}
	}

	return nil
}

// assertChainCount checks that the commit type appears exactly the
// specified number of times.
func assertChainCount(chain []commit.Commit, assertion Assertion) error {
	want, _ := commit.ParseType(assertion.Commit)
	count := 0
	for _, c := range chain {
		if c.Body.Kind() == want {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertChainCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Commit),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Chain:    chain,
		}
	}

	return nil
}

// assertFinalState checks the live process table, endpoint count and
// per-process capability counts against the assertion. Only the
// populated clauses are checked.
func assertFinalState(k *kernel.Kernel, assertion Assertion) error {
	if assertion.Processes != nil {
		infos := k.Processes()
		names := make([]string, len(infos))
		for i, p := range infos {
			names[i] = p.Name
		}
		if !reflect.DeepEqual(names, assertion.Processes) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("live processes %v", assertion.Processes),
				Actual:   fmt.Sprintf("live processes %v", names),
			}
		}
	}

	if assertion.Endpoints != nil {
		n := len(k.Endpoints())
		if n != *assertion.Endpoints {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%d live endpoints", *assertion.Endpoints),
				Actual:   fmt.Sprintf("%d live endpoints", n),
			}
		}
	}

	// Sort pids so a multi-clause failure is always reported the same.
	pids := make([]uint64, 0, len(assertion.Caps))
	for pid := range assertion.Caps {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		want := assertion.Caps[pid]
		got := len(k.CapsOf(abi.Pid(pid)))
		if got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("pid %d holding %d capabilities", pid, want),
				Actual:   fmt.Sprintf("pid %d holding %d capabilities", pid, got),
			}
		}
	}

	return nil
}

// bodyMatches reports whether a commit body's canonical form carries
// every expected field with an equal value. Extra fields are ignored;
// nested objects compare whole.
func bodyMatches(b commit.Body, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}

	data, err := commit.EncodeBody(b)
	if err != nil {
		return false, fmt.Errorf("encode %s body: %w", b.Kind(), err)
	}
	v, err := abi.ValueFromJSON(data)
	if err != nil {
		return false, fmt.Errorf("decode %s body: %w", b.Kind(), err)
	}
	obj, ok := v.(abi.Obj)
	if !ok {
		return false, fmt.Errorf("%s body is not an object", b.Kind())
	}

	for key, expected := range fields {
		actual, ok := obj[key]
		if !ok {
			return false, nil
		}
		want, err := abi.ValueFromGo(expected)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", key, err)
		}
		if !reflect.DeepEqual(actual, want) {
			return false, nil
		}
	}

	return true, nil
}

// AssertionContext provides the live kernel for assertion evaluation.
type AssertionContext struct {
	Kernel *kernel.Kernel
}

// EvaluateAssertions evaluates all assertions against the kernel the
// scenario ran on. Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	var chain []commit.Commit
	if actx != nil && actx.Kernel != nil {
		chain = actx.Kernel.Commits()
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertChainContains:
			err = assertChainContains(chain, assertion)
		case AssertChainOrder:
			err = assertChainOrder(chain, assertion)
		case AssertChainCount:
			err = assertChainCount(chain, assertion)
		case AssertFinalState:
			if actx == nil || actx.Kernel == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a kernel context", i)
			} else {
				err = assertFinalState(actx.Kernel, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
