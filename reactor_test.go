package reactor_test

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cazwell/reactor"
)

func newTestReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.Create()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Destroy() })
	return r
}

func TestCreateSelectsBackend(t *testing.T) {
	r := newTestReactor(t)
	require.NotEmpty(t, r.GetMethod())
}

func TestGetVersion(t *testing.T) {
	require.NotEmpty(t, reactor.GetVersion())
}

func TestFDReadDispatch(t *testing.T) {
	r := newTestReactor(t)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	fired := make(chan int, 1)
	ev := &reactor.Event{}
	r.SetFDEvent(ev, int(rp.Fd()), reactor.Read, func(fd int, mask reactor.Mask, arg any) {
		fired <- fd
	}, nil)
	require.NoError(t, r.BindToReactor(ev))
	require.NoError(t, r.Add(ev, nil))

	_, err = wp.Write([]byte("x"))
	require.NoError(t, err)

	n, err := r.Loop(reactor.LoopOnce)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	select {
	case fd := <-fired:
		require.Equal(t, int(rp.Fd()), fd)
	default:
		t.Fatal("callback did not fire")
	}
}

func TestFDNonPersistAutoDeletes(t *testing.T) {
	r := newTestReactor(t)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	var calls int
	ev := &reactor.Event{}
	r.SetFDEvent(ev, int(rp.Fd()), reactor.Read, func(int, reactor.Mask, any) {
		calls++
	}, nil)
	require.NoError(t, r.BindToReactor(ev))
	require.NoError(t, r.Add(ev, nil))

	_, err = wp.Write([]byte("x"))
	require.NoError(t, err)
	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.False(t, ev.Pending(0, nil))

	// nothing is registered now; LoopNonBlocking must report "no events"
	// rather than blocking.
	n, err := r.Loop(reactor.LoopNonBlocking)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFDPersistSurvivesDispatch(t *testing.T) {
	r := newTestReactor(t)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	var calls int
	ev := &reactor.Event{}
	r.SetFDEvent(ev, int(rp.Fd()), reactor.Read|reactor.Persist, func(int, reactor.Mask, any) {
		calls++
	}, nil)
	require.NoError(t, r.BindToReactor(ev))
	require.NoError(t, r.Add(ev, nil))

	_, err = wp.Write([]byte("x"))
	require.NoError(t, err)
	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.True(t, ev.Pending(0, nil))

	require.NoError(t, r.Del(ev))
}

func TestTimerFires(t *testing.T) {
	r := newTestReactor(t)

	fired := make(chan struct{}, 1)
	ev := &reactor.Event{}
	r.SetTimerEvent(ev, func(int, reactor.Mask, any) { close(fired) }, nil)
	require.NoError(t, r.BindToReactor(ev))
	timeout := 10 * time.Millisecond
	require.NoError(t, r.Add(ev, &timeout))

	_, err := r.Loop(reactor.LoopOnce)
	require.NoError(t, err)

	select {
	case <-fired:
	default:
		t.Fatal("timer did not fire")
	}
}

func TestLoopReportsNoEvents(t *testing.T) {
	r := newTestReactor(t)
	n, err := r.Loop(reactor.LoopNonBlocking)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPendingEventCountsTowardEventCount(t *testing.T) {
	// A pure-timer event has no fd/signal binding, so it must still keep
	// the loop from reporting "no events" (regression: eventCount used to
	// only track stateInserted, which pure-timer events never acquire).
	r := newTestReactor(t)

	ev := &reactor.Event{}
	r.SetTimerEvent(ev, func(int, reactor.Mask, any) {}, nil)
	require.NoError(t, r.BindToReactor(ev))
	timeout := time.Hour
	require.NoError(t, r.Add(ev, &timeout))

	n, err := r.Loop(reactor.LoopNonBlocking)
	require.NoError(t, err)
	require.Equal(t, 0, n, "loop must not report no-events while a timer is pending")

	require.NoError(t, r.Del(ev))
}

func TestLoopExit(t *testing.T) {
	r := newTestReactor(t)
	require.NoError(t, r.LoopExit(0))
	n, err := r.Loop(reactor.LoopDefault)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestLoopBreakStopsProcessingFurtherActiveEvents(t *testing.T) {
	r := newTestReactor(t)

	var mu sync.Mutex
	var calls []string

	rp1, wp1, err := os.Pipe()
	require.NoError(t, err)
	defer rp1.Close()
	defer wp1.Close()
	rp2, wp2, err := os.Pipe()
	require.NoError(t, err)
	defer rp2.Close()
	defer wp2.Close()

	ev1 := &reactor.Event{}
	r.SetFDEvent(ev1, int(rp1.Fd()), reactor.Read, func(int, reactor.Mask, any) {
		mu.Lock()
		calls = append(calls, "ev1")
		mu.Unlock()
		r.LoopBreak()
	}, nil)
	require.NoError(t, r.BindToReactor(ev1))
	require.NoError(t, r.Add(ev1, nil))

	ev2 := &reactor.Event{}
	r.SetFDEvent(ev2, int(rp2.Fd()), reactor.Read, func(int, reactor.Mask, any) {
		mu.Lock()
		calls = append(calls, "ev2")
		mu.Unlock()
	}, nil)
	require.NoError(t, r.BindToReactor(ev2))
	require.NoError(t, r.Add(ev2, nil))

	_, err = wp1.Write([]byte("x"))
	require.NoError(t, err)
	_, err = wp2.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Loop(reactor.LoopDefault)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, calls, "ev1")
	require.Equal(t, "ev1", calls[len(calls)-1], "no active event may be dispatched after the breaking callback")
}

func TestDestroyIsIdempotent(t *testing.T) {
	r, err := reactor.Create()
	require.NoError(t, err)
	require.NoError(t, r.Destroy())
	require.NoError(t, r.Destroy())
}

func TestDestroyDeletesNonInternalEvents(t *testing.T) {
	r, err := reactor.Create()
	require.NoError(t, err)

	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	ev := &reactor.Event{}
	r.SetFDEvent(ev, int(rp.Fd()), reactor.Read|reactor.Persist, func(int, reactor.Mask, any) {}, nil)
	require.NoError(t, r.BindToReactor(ev))
	require.NoError(t, r.Add(ev, nil))
	require.True(t, ev.Pending(0, nil))

	require.NoError(t, r.Destroy())
	require.False(t, ev.Pending(0, nil))
}

func TestSetPrioritiesRejectedWhileActive(t *testing.T) {
	// One callback's own event is deactivated before it runs, so the
	// rejection is only observable while a second event is still sitting
	// in the active queue behind it. Two timers (rather than two fds) give
	// a deterministic active-queue order: processTimers moves expired
	// timers in expiry order, so the earlier timer lands first in the
	// active queue and its callback runs while the later one is still
	// active.
	r := newTestReactor(t)

	var rejected bool
	evA := &reactor.Event{}
	r.SetTimerEvent(evA, func(int, reactor.Mask, any) {
		rejected = errors.Is(r.SetPriorities(4), reactor.ErrEventsActive)
	}, nil)
	require.NoError(t, r.BindToReactor(evA))
	shortTimeout := time.Millisecond
	require.NoError(t, r.Add(evA, &shortTimeout))

	evB := &reactor.Event{}
	r.SetTimerEvent(evB, func(int, reactor.Mask, any) {}, nil)
	require.NoError(t, r.BindToReactor(evB))
	longerTimeout := 5 * time.Millisecond
	require.NoError(t, r.Add(evB, &longerTimeout))

	time.Sleep(15 * time.Millisecond)

	_, err := r.Loop(reactor.LoopNonBlocking)
	require.NoError(t, err)

	require.True(t, rejected, "SetPriorities must be rejected while a sibling event is still active")
}

func TestBindToReactorRejectsUninitialized(t *testing.T) {
	r := newTestReactor(t)
	err := r.BindToReactor(&reactor.Event{})
	require.Error(t, err)
}

func TestPriorityOrdering(t *testing.T) {
	r, err := reactor.Create(reactor.WithPriorities(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Destroy() })

	rpA, wpA, err := os.Pipe()
	require.NoError(t, err)
	defer rpA.Close()
	defer wpA.Close()
	rpB, wpB, err := os.Pipe()
	require.NoError(t, err)
	defer rpB.Close()
	defer wpB.Close()

	var order []string

	low := &reactor.Event{}
	r.SetFDEvent(low, int(rpB.Fd()), reactor.Read, func(int, reactor.Mask, any) {
		order = append(order, "low")
	}, nil)
	require.NoError(t, r.BindToReactor(low))
	low.SetPriority(2)
	require.NoError(t, r.Add(low, nil))

	high := &reactor.Event{}
	r.SetFDEvent(high, int(rpA.Fd()), reactor.Read, func(int, reactor.Mask, any) {
		order = append(order, "high")
	}, nil)
	require.NoError(t, r.BindToReactor(high))
	high.SetPriority(0)
	require.NoError(t, r.Add(high, nil))

	_, err = wpA.Write([]byte("x"))
	require.NoError(t, err)
	_, err = wpB.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Loop(reactor.LoopOnce)
	require.NoError(t, err)

	require.Equal(t, []string{"high"}, order, "only the lowest-numbered ready priority drains per iteration")
}

func TestSignalDelivery(t *testing.T) {
	r := newTestReactor(t)

	fired := make(chan int, 1)
	ev := &reactor.Event{}
	r.SetSignalEvent(ev, int(syscall.SIGUSR1), func(signo int, mask reactor.Mask, arg any) {
		fired <- signo
	}, nil)
	require.NoError(t, r.BindToReactor(ev))
	require.NoError(t, r.Add(ev, nil))
	defer r.Del(ev)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	deadline := time.After(2 * time.Second)
	for {
		n, err := r.Loop(reactor.LoopOnce)
		require.NoError(t, err)
		_ = n
		select {
		case signo := <-fired:
			require.Equal(t, int(syscall.SIGUSR1), signo)
			return
		case <-deadline:
			t.Fatal("signal was never delivered")
		default:
		}
	}
}

func TestSignalOwnershipConflict(t *testing.T) {
	r1 := newTestReactor(t)
	r2 := newTestReactor(t)

	ev1 := &reactor.Event{}
	r1.SetSignalEvent(ev1, int(syscall.SIGUSR2), func(int, reactor.Mask, any) {}, nil)
	require.NoError(t, r1.BindToReactor(ev1))
	require.NoError(t, r1.Add(ev1, nil))
	defer r1.Del(ev1)

	ev2 := &reactor.Event{}
	r2.SetSignalEvent(ev2, int(syscall.SIGUSR2), func(int, reactor.Mask, any) {}, nil)
	require.NoError(t, r2.BindToReactor(ev2))
	err := r2.Add(ev2, nil)
	require.ErrorIs(t, err, reactor.ErrSignalOwned)
}
