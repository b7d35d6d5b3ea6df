package reactor_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cazwell/reactor"
)

func TestOnceFDFiresExactlyOnceAndSelfFrees(t *testing.T) {
	r := newTestReactor(t)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	var calls int
	ev, err := r.OnceFD(int(rp.Fd()), reactor.Read|reactor.Persist, nil, func(int, reactor.Mask, any) {
		calls++
	}, nil)
	require.NoError(t, err)

	_, err = wp.Write([]byte("x"))
	require.NoError(t, err)
	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.False(t, ev.Pending(0, nil), "a Once event must deregister itself before its callback runs")

	// a second write must have nobody listening.
	_, err = wp.Write([]byte("y"))
	require.NoError(t, err)
	n, err := r.Loop(reactor.LoopNonBlocking)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestOnceTimerFires(t *testing.T) {
	r := newTestReactor(t)

	fired := make(chan struct{}, 1)
	_, err := r.OnceTimer(5*time.Millisecond, func(int, reactor.Mask, any) {
		close(fired)
	}, nil)
	require.NoError(t, err)

	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)

	select {
	case <-fired:
	default:
		t.Fatal("once timer did not fire")
	}
}

func TestOnceFDTimeoutRaceCancelsTheLoser(t *testing.T) {
	r := newTestReactor(t)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	var calls int
	timeout := 200 * time.Millisecond
	ev, err := r.OnceFD(int(rp.Fd()), reactor.Read, &timeout, func(_ int, mask reactor.Mask, _ any) {
		calls++
	}, nil)
	require.NoError(t, err)

	_, err = wp.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)

	require.Equal(t, 1, calls, "fd readiness must win the race and fire exactly once")
	require.False(t, ev.Pending(0, nil))
}

func TestOnceSignalRejected(t *testing.T) {
	r := newTestReactor(t)
	_, err := r.OnceSignal(9)
	require.ErrorIs(t, err, reactor.ErrSignalOnce)
}
