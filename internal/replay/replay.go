// Package replay rebuilds kernel state from a commit chain.
//
// Replay is structural, not a special mode: the rebuild goes through
// the same state.Apply path the live gateway uses, so a chain that
// applied once applies identically forever. Verification strengthens
// the rebuild by recomputing every commit's seal and comparing the
// state digest after each step against the recorded ledger, stopping
// at the first divergence.
package replay

import (
	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/state"
)

// Ledger is the recorded evidence for a chain: the state digest
// observed after each commit was applied, keyed by commit seq. A
// missing seq means no evidence was recorded for that step, which
// verification treats as nothing to compare.
type Ledger map[uint64]string

// Replay applies commits in order onto a fresh state. The chain must
// be complete (genesis first) and in strict sequence order; the first
// commit that fails to apply stops the rebuild.
func Replay(commits []commit.Commit) (*state.State, error) {
	st := state.New()
	for _, c := range commits {
		if err := st.Apply(c); err != nil {
			return nil, newApplyError(c.Seq, err)
		}
	}
	return st, nil
}

// ReplayAndVerify rebuilds state like Replay while checking the chain
// against its own seals and against the recorded ledger. For each
// commit it verifies the hash linkage, recomputes the commit digest
// over what storage returned, applies the commit, and compares the
// resulting state digest with the ledger entry for that seq. The
// first divergence aborts with ErrCodeVerificationFailed carrying the
// seq it occurred at.
func ReplayAndVerify(commits []commit.Commit, recorded Ledger) (*state.State, error) {
	st := state.New()
	prev := abi.ZeroHash
	for _, c := range commits {
		if c.Prev != prev {
			return nil, NewVerificationError(c.Seq, prev, c.Prev)
		}
		computed, err := c.ComputeHash()
		if err != nil {
			return nil, newApplyError(c.Seq, err)
		}
		if computed != c.Hash {
			return nil, NewVerificationError(c.Seq, c.Hash, computed)
		}
		if err := st.Apply(c); err != nil {
			return nil, newApplyError(c.Seq, err)
		}
		if want, ok := recorded[c.Seq]; ok {
			if got := st.Hash(); got != want {
				return nil, NewVerificationError(c.Seq, want, got)
			}
		}
		prev = c.Hash
	}
	return st, nil
}

// BuildLedger replays commits and records the state digest after each
// step. This is how the live gateway's evidence is reconstructed for
// chains persisted before digest recording existed.
func BuildLedger(commits []commit.Commit) (Ledger, error) {
	st := state.New()
	ledger := make(Ledger, len(commits))
	for _, c := range commits {
		if err := st.Apply(c); err != nil {
			return nil, newApplyError(c.Seq, err)
		}
		ledger[c.Seq] = st.Hash()
	}
	return ledger, nil
}
