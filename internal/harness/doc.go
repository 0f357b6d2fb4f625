// Package harness runs conformance scenarios against a live kernel.
//
// A scenario boots a fresh kernel from a declared manifest, drives raw
// syscalls through the gateway one at a time, and asserts on the
// commit chain and the final state. Scenarios are the executable form
// of the gateway's contract: what a syscall returns, what the chain
// records, and what the capability tables look like afterwards.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario demonstrates"
//	boot:
//	  name: test-boot
//	  processes:
//	    - name: alice
//	      grants:
//	        - { type: storage, object: 1, rights: rwg }
//	    - name: bob
//	setup:
//	  - pid: 1
//	    syscall: endpoint_create
//	flow:
//	  - pid: 1
//	    syscall: cap_grant
//	    args: [1, 2, 1]
//	    expect: ok
//	assertions:
//	  - type: chain_contains
//	    commit: cap_inserted
//	    fields: { pid: 2 }
//	  - type: final_state
//	    caps: { 2: 2 }
//
// Boot processes get pids 1..N in declaration order; steps address
// them numerically. Argument words follow each syscall's register
// layout, e.g. cap_grant takes [slot, target pid, rights bits].
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - chain_contains: a commit of the given type with matching body fields exists
//   - chain_order: commit types first appear in the given order
//   - chain_count: a commit type appears exactly N times
//   - final_state: live processes, endpoint count and capability counts match
//
// The commit chain is additionally re-verified after every scenario,
// whatever the assertions say: a scenario that corrupts replay fails.
//
// # Deterministic Testing
//
// Scenarios run on an inert test platform: boot processes exist as
// kernel state but never run as goroutines, and the harness posts
// their syscalls itself. Together with a fixed boot id (from
// scenario.boot_id, default "boot-harness") and one gateway turn per
// step, this makes traces byte-reproducible for golden comparison.
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/grant.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Execute it:
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
