package store

import (
	"context"
	"fmt"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/replay"
)

// LoadCommits returns the whole persisted chain in sequence order.
// Bodies are decoded back to their typed form; the chain linkage is
// verified by commit.Restore when the caller rebuilds a log from the
// result, not here.
//
// Returns an empty slice (not nil) for a database with no commits.
func (s *Store) LoadCommits(ctx context.Context) ([]commit.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, prev, hash, type, body
		FROM commits
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	var commits []commit.Commit
	for rows.Next() {
		var (
			seq        uint64
			prev, hash string
			typ        int
			body       string
		)
		if err := rows.Scan(&seq, &prev, &hash, &typ, &body); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		b, err := commit.DecodeBody(commit.Type(typ), []byte(body))
		if err != nil {
			return nil, fmt.Errorf("commit %d: %w", seq, err)
		}
		commits = append(commits, commit.Commit{Seq: seq, Prev: prev, Hash: hash, Body: b})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}

	if commits == nil {
		commits = []commit.Commit{}
	}

	return commits, nil
}

// LoadLedger returns the state digest recorded after each commit,
// keyed by seq. This is the evidence ReplayAndVerify compares a
// rebuilt state against.
func (s *Store) LoadLedger(ctx context.Context) (replay.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, state_hash
		FROM commits
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	ledger := make(replay.Ledger)
	for rows.Next() {
		var (
			seq  uint64
			hash string
		)
		if err := rows.Scan(&seq, &hash); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		ledger[seq] = hash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}

	return ledger, nil
}

// Events returns the whole audit trail in event id order.
//
// Returns an empty slice (not nil) for a database with no events.
func (s *Store) Events(ctx context.Context) ([]audit.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, pid, kind, sysno, arg0, arg1, arg2, arg3, request_id, result, detail
		FROM sys_events
		ORDER BY id ASC
	`)
}

// EventsForPid returns one process's audit trail in event id order.
func (s *Store) EventsForPid(ctx context.Context, pid abi.Pid) ([]audit.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, pid, kind, sysno, arg0, arg1, arg2, arg3, request_id, result, detail
		FROM sys_events
		WHERE pid = ?
		ORDER BY id ASC
	`, uint64(pid))
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			id, pid, sysno, requestID uint64
			kind                      int
			result                    int64
			a0, a1, a2, a3            int64
			detail                    string
		)
		if err := rows.Scan(&id, &pid, &kind, &sysno, &a0, &a1, &a2, &a3, &requestID, &result, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, audit.Event{
			ID:        abi.EventID(id),
			Pid:       abi.Pid(pid),
			Kind:      audit.Kind(kind),
			Sysno:     abi.Sysno(sysno),
			Args:      [4]uint64{uint64(a0), uint64(a1), uint64(a2), uint64(a3)},
			RequestID: abi.EventID(requestID),
			Result:    abi.ResultCode(result),
			Detail:    detail,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if events == nil {
		events = []audit.Event{}
	}

	return events, nil
}

// Meta returns the value stored under key. Returns sql.ErrNoRows if
// the key was never set.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM meta WHERE key = ?
	`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("meta %q: %w", key, err)
	}
	return value, nil
}

// LoadBoot returns everything a kernel restore needs: the chain, its
// ledger, and the audit trail.
func (s *Store) LoadBoot(ctx context.Context) ([]commit.Commit, replay.Ledger, []audit.Event, error) {
	commits, err := s.LoadCommits(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, err := s.LoadLedger(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := s.Events(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return commits, ledger, events, nil
}
