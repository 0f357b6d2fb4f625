package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCompleteCollect(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(3)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysSend, [3]uint64{1, 7, 0}, []byte("x")))
	assert.Equal(t, abi.StatusPending, m.Status())

	req, ok := m.PendingRequest()
	require.True(t, ok)
	assert.Equal(t, abi.Pid(3), req.Pid)
	assert.Equal(t, abi.SysSend, req.Sysno)
	assert.Equal(t, uint64(7), req.Args[1])
	assert.Equal(t, []byte("x"), req.Data)

	require.True(t, m.Complete(abi.ResultOK, nil))
	assert.Equal(t, abi.StatusReady, m.Status())

	res, ok := m.TryCollect()
	require.True(t, ok)
	assert.Equal(t, abi.ResultOK, res.Code)
	assert.Empty(t, res.Data)
	assert.Equal(t, abi.StatusIdle, m.Status())
}

func TestPostRejectsSecondInFlight(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysExit, [3]uint64{}, nil))
	assert.ErrorIs(t, m.Post(abi.SysExit, [3]uint64{}, nil), ErrBusy)
}

func TestPostRejectsOversizedPayload(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	big := make([]byte, abi.DataCapacity+1)
	assert.ErrorIs(t, m.Post(abi.SysSend, [3]uint64{}, big), ErrTooLarge)
	assert.Equal(t, abi.StatusIdle, m.Status())
}

func TestRequestDataIsACopy(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysSend, [3]uint64{}, []byte("abc")))
	req, ok := m.PendingRequest()
	require.True(t, ok)
	req.Data[0] = 'z'

	again, ok := m.PendingRequest()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), again.Data)
}

// A wake with the status word still Pending must put the waiter back
// to sleep, not return early.
func TestWaitIgnoresSpuriousWake(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(2)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysCapGrant, [3]uint64{0, 3, 7}, nil))

	done := make(chan error, 1)
	go func() {
		done <- m.Wait(context.Background(), 0)
	}()

	// Ring the wake channel without completing the request.
	for i := 0; i < 3; i++ {
		m.mu.Lock()
		m.ringLocked()
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case err := <-done:
		t.Fatalf("wait returned with status still pending: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.True(t, m.Complete(abi.ResultOK, abi.EncodeU64(4)))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after completion")
	}

	res, ok := m.TryCollect()
	require.True(t, ok)
	assert.Equal(t, abi.ResultOK, res.Code)
}

func TestWaitTimesOutWhilePending(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysReceive, [3]uint64{0}, nil))

	err = m.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, abi.StatusPending, m.Status(), "timeout does not cancel the request")
}

func TestInvokeSurvivesTimeoutRounds(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	go func() {
		// Complete well past Invoke's internal wait round.
		time.Sleep(30 * time.Millisecond)
		req, ok := m.PendingRequest()
		if ok && req.Sysno == abi.SysCapDerive {
			m.Complete(abi.ResultOK, abi.EncodeU64(2))
		}
	}()

	res, err := m.Invoke(context.Background(), abi.SysCapDerive, [3]uint64{0, 1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, abi.ResultOK, res.Code)

	v, err := abi.DecodeU64(res.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestCloseWakesWaiter(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(9)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysReceive, [3]uint64{0}, nil))

	done := make(chan error, 1)
	go func() {
		done <- m.Wait(context.Background(), 0)
	}()

	time.Sleep(5 * time.Millisecond)
	p.Unbind(9)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("wait did not observe close")
	}

	assert.ErrorIs(t, m.Post(abi.SysExit, [3]uint64{}, nil), ErrClosed)
	assert.False(t, m.Complete(abi.ResultOK, nil))
}

func TestCompleteAfterCloseStillCollectable(t *testing.T) {
	// Exit path: the gateway completes the syscall, then unbinds. The
	// process must still be able to read its final result.
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	require.NoError(t, m.Post(abi.SysExit, [3]uint64{0}, nil))
	require.True(t, m.Complete(abi.ResultOK, nil))
	p.Unbind(1)

	require.NoError(t, m.Wait(context.Background(), 0))
	res, ok := m.TryCollect()
	require.True(t, ok)
	assert.Equal(t, abi.ResultOK, res.Code)
}

func TestPoolPendingInBindOrder(t *testing.T) {
	p := NewPool()
	a, err := p.Bind(5)
	require.NoError(t, err)
	_, err = p.Bind(2)
	require.NoError(t, err)
	c, err := p.Bind(8)
	require.NoError(t, err)

	require.NoError(t, c.Post(abi.SysExit, [3]uint64{}, nil))
	require.NoError(t, a.Post(abi.SysExit, [3]uint64{}, nil))

	pending := p.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, abi.Pid(5), pending[0].Pid(), "bind order, not post order")
	assert.Equal(t, abi.Pid(8), pending[1].Pid())
}

func TestPoolRejectsDuplicateBind(t *testing.T) {
	p := NewPool()
	_, err := p.Bind(1)
	require.NoError(t, err)
	_, err = p.Bind(1)
	assert.Error(t, err)
}

func TestPoolBellRingsOnPost(t *testing.T) {
	p := NewPool()
	m, err := p.Bind(1)
	require.NoError(t, err)

	select {
	case <-p.Bell():
		t.Fatal("bell rang before any post")
	default:
	}

	require.NoError(t, m.Post(abi.SysExit, [3]uint64{}, nil))

	select {
	case <-p.Bell():
	case <-time.After(time.Second):
		t.Fatal("bell did not ring on post")
	}
}
