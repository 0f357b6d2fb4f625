package commit

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
)

// MismatchError reports the first point where a chain fails to verify:
// either a commit's recorded hash does not match its recomputed hash,
// or its Prev does not link to the preceding record.
type MismatchError struct {
	Seq      uint64
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("chain mismatch at seq %d: expected %s, actual %s",
		e.Seq, e.Expected, e.Actual)
}

// Log is the append-only commit chain: a slice of fixed records plus a
// running head digest. Single-writer; the gateway goroutine owns it.
//
// A log may be trimmed from the oldest end. Trimming records the hash
// of the last dropped commit as the base, so the remaining chain still
// verifies from its own recorded starting point. Replay from genesis
// is only possible while the log is untrimmed.
type Log struct {
	firstSeq uint64
	base     string
	commits  []Commit
	head     string
}

// NewLog returns an empty chain rooted at the zero hash, ready for its
// genesis commit at seq 0.
func NewLog() *Log {
	return &Log{base: abi.ZeroHash, head: abi.ZeroHash}
}

// Restore rebuilds a chain loaded from storage and verifies it while
// doing so. base is the hash preceding the first commit (the zero hash
// for an untrimmed log).
func Restore(base string, commits []Commit) (*Log, error) {
	l := &Log{base: base, head: base}
	if len(commits) > 0 {
		l.firstSeq = commits[0].Seq
	}
	for _, c := range commits {
		want := l.firstSeq + uint64(len(l.commits))
		if c.Seq != want {
			return nil, fmt.Errorf("restore: commit out of order: seq %d, want %d", c.Seq, want)
		}
		if c.Prev != l.head {
			return nil, &MismatchError{Seq: c.Seq, Expected: l.head, Actual: c.Prev}
		}
		computed, err := c.ComputeHash()
		if err != nil {
			return nil, err
		}
		if computed != c.Hash {
			return nil, &MismatchError{Seq: c.Seq, Expected: c.Hash, Actual: computed}
		}
		l.commits = append(l.commits, c)
		l.head = c.Hash
	}
	return l, nil
}

// Append seals a new body onto the chain and returns the finished
// commit.
func (l *Log) Append(b Body) (Commit, error) {
	c := Commit{
		Seq:  l.NextSeq(),
		Prev: l.head,
		Body: b,
	}
	hash, err := c.ComputeHash()
	if err != nil {
		return Commit{}, err
	}
	c.Hash = hash
	l.commits = append(l.commits, c)
	l.head = hash
	return c, nil
}

// Head returns the hash of the newest commit (the base hash when the
// log is empty).
func (l *Log) Head() string {
	return l.head
}

// Base returns the hash the retained chain starts from.
func (l *Log) Base() string {
	return l.base
}

// Len reports the number of retained commits.
func (l *Log) Len() int {
	return len(l.commits)
}

// FirstSeq is the sequence number of the oldest retained commit.
func (l *Log) FirstSeq() uint64 {
	return l.firstSeq
}

// NextSeq is the sequence number the next Append will use.
func (l *Log) NextSeq() uint64 {
	return l.firstSeq + uint64(len(l.commits))
}

// At returns the commit with the given sequence number, if retained.
func (l *Log) At(seq uint64) (Commit, bool) {
	if seq < l.firstSeq || seq >= l.NextSeq() {
		return Commit{}, false
	}
	return l.commits[seq-l.firstSeq], true
}

// All returns a copy of the retained commits in sequence order.
func (l *Log) All() []Commit {
	out := make([]Commit, len(l.commits))
	copy(out, l.commits)
	return out
}

// Trim drops all commits with seq < keep, recording the dropped head as
// the new base so VerifyChain still anchors correctly.
func (l *Log) Trim(keep uint64) error {
	if keep <= l.firstSeq {
		return nil
	}
	if keep > l.NextSeq() {
		return fmt.Errorf("trim beyond head: keep %d, next %d", keep, l.NextSeq())
	}
	drop := keep - l.firstSeq
	l.base = l.commits[drop-1].Hash
	rest := make([]Commit, len(l.commits)-int(drop))
	copy(rest, l.commits[drop:])
	l.commits = rest
	l.firstSeq = keep
	if len(l.commits) == 0 {
		l.head = l.base
	}
	return nil
}

// VerifyChain walks the retained chain and recomputes every hash,
// returning the first mismatch or nil.
func (l *Log) VerifyChain() error {
	prev := l.base
	for _, c := range l.commits {
		if c.Prev != prev {
			return &MismatchError{Seq: c.Seq, Expected: prev, Actual: c.Prev}
		}
		computed, err := c.ComputeHash()
		if err != nil {
			return err
		}
		if computed != c.Hash {
			return &MismatchError{Seq: c.Seq, Expected: c.Hash, Actual: computed}
		}
		prev = c.Hash
	}
	return nil
}
