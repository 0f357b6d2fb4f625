package audit

import (
	"sync"
	"testing"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Incrementing(t *testing.T) {
	c := NewClock()
	assert.Equal(t, abi.EventID(0), c.Current(), "new clock starts at 0")
	assert.Equal(t, abi.EventID(1), c.Next())
	assert.Equal(t, abi.EventID(2), c.Next())
	assert.Equal(t, abi.EventID(2), c.Current())
}

func TestClock_ResumesAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, abi.EventID(101), c.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[abi.EventID]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := c.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine, "every id is unique")
	assert.Equal(t, abi.EventID(goroutines*perGoroutine), c.Current())
}

func TestLogPairsRequestAndResponse(t *testing.T) {
	l := NewLog(0)

	req := l.Request(3, abi.SysSend, [4]uint64{0, 7, 16, 0})
	resp := l.Response(3, req, abi.ResultOK, "")

	events := l.Events()
	require.Len(t, events, 2)

	assert.Equal(t, KindRequest, events[0].Kind)
	assert.Equal(t, abi.SysSend, events[0].Sysno)
	assert.Equal(t, uint64(7), events[0].Args[1])

	assert.Equal(t, KindResponse, events[1].Kind)
	assert.Equal(t, req, events[1].RequestID)
	assert.Equal(t, abi.ResultOK, events[1].Result)
	assert.Equal(t, resp, events[1].ID)
	assert.Greater(t, resp, req)
}

func TestLogRecordsDenialDetail(t *testing.T) {
	l := NewLog(0)

	req := l.Request(5, abi.SysReceive, [4]uint64{2, 0, 0, 0})
	l.Response(5, req, abi.ResultPermissionDenied, "endpoint 2 not owned by caller")

	e, ok := l.Find(req + 1)
	require.True(t, ok)
	assert.Equal(t, abi.ResultPermissionDenied, e.Result)
	assert.Contains(t, e.Detail, "not owned")
}

func TestLogTrimsOldestAtCapacity(t *testing.T) {
	l := NewLog(4)

	for i := 0; i < 6; i++ {
		req := l.Request(1, abi.SysExit, [4]uint64{})
		l.Response(1, req, abi.ResultOK, "")
	}

	assert.Equal(t, 4, l.Len())
	events := l.Events()
	// Ids keep counting even though the head was dropped.
	assert.Equal(t, abi.EventID(9), events[0].ID)
	assert.Equal(t, abi.EventID(12), events[3].ID)
	assert.Equal(t, abi.EventID(12), l.LastID())
}

func TestLogTail(t *testing.T) {
	l := NewLog(0)
	for i := 0; i < 5; i++ {
		l.Request(1, abi.SysSend, [4]uint64{})
	}

	tail := l.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, abi.EventID(4), tail[0].ID)
	assert.Equal(t, abi.EventID(5), tail[1].ID)

	assert.Len(t, l.Tail(99), 5)
}

func TestRestoreResumesClock(t *testing.T) {
	l := NewLog(0)
	req := l.Request(2, abi.SysSpawn, [4]uint64{})
	l.Response(2, req, abi.ResultOK, "")

	restored, err := Restore(0, l.Events())
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, abi.EventID(2), restored.LastID())

	next := restored.Request(2, abi.SysExit, [4]uint64{})
	assert.Equal(t, abi.EventID(3), next)
}

func TestRestoreRejectsUnorderedIDs(t *testing.T) {
	_, err := Restore(0, []Event{
		{ID: 2, Kind: KindRequest},
		{ID: 2, Kind: KindResponse},
	})
	require.Error(t, err)
}
