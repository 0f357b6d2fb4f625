package store

import (
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
)

// AppendCommit inserts one sealed commit and its state digest.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a gateway restart
// that re-emits a commit it already persisted is silently ignored.
//
// The body is stored as canonical JSON, byte-identical to what the
// chain hash covers, so LoadBoot can re-verify the seal on the way
// back in.
func (s *Store) AppendCommit(c commit.Commit, stateHash string) error {
	body, err := commit.EncodeBody(c.Body)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO commits
		(seq, prev, hash, type, body, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		c.Seq,
		c.Prev,
		c.Hash,
		int(c.Type()),
		string(body),
		stateHash,
	)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}

	return nil
}

// AppendEvent inserts one audit event.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate event
// ids are silently ignored.
func (s *Store) AppendEvent(e audit.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO sys_events
		(id, pid, kind, sysno, arg0, arg1, arg2, arg3, request_id, result, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		int64(e.ID),
		int64(e.Pid),
		int(e.Kind),
		int64(e.Sysno),
		int64(e.Args[0]),
		int64(e.Args[1]),
		int64(e.Args[2]),
		int64(e.Args[3]),
		int64(e.RequestID),
		int64(e.Result),
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("append event %d: %w", e.ID, err)
	}

	return nil
}

// SetMeta stores a key/value pair, replacing any previous value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}

	return nil
}
