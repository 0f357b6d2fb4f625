package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/audit"
	"github.com/cypher-asi/zero-os-sub006/internal/commit"
	"github.com/cypher-asi/zero-os-sub006/internal/replay"
)

func TestLoadCommits_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	chain := buildTestChain(t)

	for _, c := range chain {
		if err := s.AppendCommit(c, "state-"+c.Hash[:8]); err != nil {
			t.Fatalf("AppendCommit() failed: %v", err)
		}
	}

	loaded, err := s.LoadCommits(ctx)
	if err != nil {
		t.Fatalf("LoadCommits() failed: %v", err)
	}
	if !reflect.DeepEqual(chain, loaded) {
		t.Errorf("loaded chain differs from written chain:\nwrote  %+v\nloaded %+v", chain, loaded)
	}

	// The loaded chain still seals: linkage and digests intact.
	if _, err := commit.Restore(abi.ZeroHash, loaded); err != nil {
		t.Errorf("Restore() of loaded chain failed: %v", err)
	}
}

func TestLoadCommits_EmptyDatabase(t *testing.T) {
	s := createTestStore(t)

	loaded, err := s.LoadCommits(context.Background())
	if err != nil {
		t.Fatalf("LoadCommits() failed: %v", err)
	}
	if loaded == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(loaded) != 0 {
		t.Errorf("expected no commits, got %d", len(loaded))
	}
}

func TestLoadLedger_KeysBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	chain := buildTestChain(t)

	want := make(replay.Ledger)
	for i, c := range chain {
		hash := "state-" + string(rune('a'+i))
		want[c.Seq] = hash
		if err := s.AppendCommit(c, hash); err != nil {
			t.Fatalf("AppendCommit() failed: %v", err)
		}
	}

	ledger, err := s.LoadLedger(ctx)
	if err != nil {
		t.Fatalf("LoadLedger() failed: %v", err)
	}
	if !reflect.DeepEqual(want, ledger) {
		t.Errorf("ledger = %v, expected %v", ledger, want)
	}
}

func TestEvents_OrderedById(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order; reads must come back in id order.
	for _, id := range []abi.EventID{3, 1, 4, 2} {
		kind := audit.KindRequest
		if id%2 == 0 {
			kind = audit.KindResponse
		}
		if err := s.AppendEvent(testEvent(id, 1, kind)); err != nil {
			t.Fatalf("AppendEvent(%d) failed: %v", id, err)
		}
	}

	events, err := s.Events(ctx)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("len = %d, expected 4", len(events))
	}
	for i, e := range events {
		if e.ID != abi.EventID(i+1) {
			t.Errorf("events[%d].ID = %d, expected %d", i, e.ID, i+1)
		}
	}
	if events[0].Args != [4]uint64{7, 8, 9, 10} {
		t.Errorf("args did not round-trip: %v", events[0].Args)
	}
	if events[1].Result != abi.ResultPermissionDenied {
		t.Errorf("negative result did not round-trip: %d", events[1].Result)
	}
}

func TestEventsForPid_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.AppendEvent(testEvent(1, 1, audit.KindRequest)); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}
	if err := s.AppendEvent(testEvent(2, 2, audit.KindRequest)); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}
	if err := s.AppendEvent(testEvent(3, 1, audit.KindRequest)); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	events, err := s.EventsForPid(ctx, 1)
	if err != nil {
		t.Fatalf("EventsForPid() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, expected 2", len(events))
	}
	for _, e := range events {
		if e.Pid != 1 {
			t.Errorf("event %d has pid %d, expected 1", e.ID, e.Pid)
		}
	}
}

func TestLoadBoot_ReturnsAllThree(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	chain := buildTestChain(t)

	for _, c := range chain {
		if err := s.AppendCommit(c, "state-hash"); err != nil {
			t.Fatalf("AppendCommit() failed: %v", err)
		}
	}
	if err := s.AppendEvent(testEvent(1, 1, audit.KindRequest)); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	commits, ledger, events, err := s.LoadBoot(ctx)
	if err != nil {
		t.Fatalf("LoadBoot() failed: %v", err)
	}
	if len(commits) != len(chain) {
		t.Errorf("commits = %d, expected %d", len(commits), len(chain))
	}
	if len(ledger) != len(chain) {
		t.Errorf("ledger entries = %d, expected %d", len(ledger), len(chain))
	}
	if len(events) != 1 {
		t.Errorf("events = %d, expected 1", len(events))
	}
}
