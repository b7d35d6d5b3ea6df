package reactor

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalInfo is the per-reactor signal-to-fd translation trampoline: a
// self-pipe, a registration flag, an aggregate caught flag, per-signal
// subscriber lists, and per-signal delivery counters.
//
// Go forbids installing a raw async-signal handler; the async-safe half
// of the trampoline is instead Go's own os/signal delivery, which the
// runtime guarantees does not allocate or block on the signal-delivering
// thread. The notify goroutine below does nothing but write one byte and
// bump a counter.
type signalInfo struct {
	reactor *Reactor

	pipeR, pipeW int
	ev           *Event // internal, persistent, readable self-pipe event
	added        bool   // self-pipe registered with the backend

	caught atomic.Bool
	counts sync.Map // map[int]*atomic.Int32, per signal number

	mu          sync.Mutex // protects subscribers/notifyCh bookkeeping below
	subscribers map[int]*eventList
	notifyCh    chan os.Signal
	stopCh      chan struct{}
}

func newSignalInfo(r *Reactor) (*signalInfo, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	si := &signalInfo{
		reactor:     r,
		pipeR:       fds[0],
		pipeW:       fds[1],
		subscribers: make(map[int]*eventList),
		notifyCh:    make(chan os.Signal, 64),
		stopCh:      make(chan struct{}),
	}
	go si.pump()
	return si, nil
}

// pump is the async-safe-equivalent half of the trampoline: it only
// writes a single byte per delivery and bumps a counter.
func (si *signalInfo) pump() {
	for {
		select {
		case sig, ok := <-si.notifyCh:
			if !ok {
				return
			}
			if s, ok := sig.(syscall.Signal); ok {
				si.deliver(int(s))
			}
		case <-si.stopCh:
			return
		}
	}
}

func (si *signalInfo) countFor(signo int) *atomic.Int32 {
	v, _ := si.counts.LoadOrStore(signo, new(atomic.Int32))
	return v.(*atomic.Int32)
}

// deliver is called (from the pump goroutine) once per received signal.
func (si *signalInfo) deliver(signo int) {
	si.countFor(signo).Add(1)
	si.caught.Store(true)
	var b [1]byte
	b[0] = byte(signo)
	_, _ = unix.Write(si.pipeW, b[:])
}

// addSubscriber installs the reactor's handler for signo if ev is the
// first subscriber, and registers the self-pipe read event with the
// backend if it is not yet registered.
func (si *signalInfo) addSubscriber(ev *Event) error {
	signo := ev.signo

	if _, ok := claimSignal(signo, si.reactor); !ok {
		return ErrSignalOwned
	}

	si.mu.Lock()
	list, ok := si.subscribers[signo]
	first := !ok
	if !ok {
		list = &eventList{}
		si.subscribers[signo] = list
	}
	list.pushRegistered(ev)
	if first {
		signal.Notify(si.notifyCh, unixSignal(signo))
	}
	needPipeReg := !si.added
	si.mu.Unlock()

	if needPipeReg {
		if err := si.registerPipe(); err != nil {
			_ = si.removeSubscriber(ev)
			return err
		}
	}
	return nil
}

// removeSubscriber reverses addSubscriber: restores default disposition
// once the last subscriber for signo is gone, and unregisters the
// self-pipe once no signal events remain at all.
func (si *signalInfo) removeSubscriber(ev *Event) error {
	signo := ev.signo

	si.mu.Lock()
	list, ok := si.subscribers[signo]
	if !ok {
		si.mu.Unlock()
		return nil
	}
	list.removeRegistered(ev)
	last := list.n == 0
	if last {
		delete(si.subscribers, signo)
		signal.Stop(si.notifyCh)
		// re-subscribe the channel to whatever signals remain.
		for remaining := range si.subscribers {
			signal.Notify(si.notifyCh, unixSignal(remaining))
		}
	}
	noneLeft := len(si.subscribers) == 0
	si.mu.Unlock()

	if last {
		releaseSignal(signo, si.reactor)
	}

	if noneLeft && si.added {
		return si.unregisterPipe()
	}
	return nil
}

func (si *signalInfo) registerPipe() error {
	if si.added {
		return nil
	}
	if err := si.reactor.backend.add(si.ev); err != nil {
		return err
	}
	si.added = true
	return nil
}

func (si *signalInfo) unregisterPipe() error {
	if !si.added {
		return nil
	}
	if err := si.reactor.backend.del(si.ev); err != nil {
		return err
	}
	si.added = false
	return nil
}

// drain is the reactor-side demultiplexer, invoked on the loop goroutine
// when the backend reports the self-pipe readable. It discards pending
// bytes, then for each signal with a positive caught count, activates
// every subscribed event with delivered mask Signal and ncalls set to
// the caught count, then zeros that signal's counter.
func (si *signalInfo) drain(r *Reactor) {
	var buf [64]byte
	for {
		n, err := unix.Read(si.pipeR, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}

	si.mu.Lock()
	signos := make([]int, 0, len(si.subscribers))
	for signo := range si.subscribers {
		signos = append(signos, signo)
	}
	si.mu.Unlock()

	for _, signo := range signos {
		counter := si.countFor(signo)
		n := counter.Swap(0)
		if n <= 0 {
			continue
		}
		si.mu.Lock()
		list := si.subscribers[signo]
		var events []*Event
		if list != nil {
			for ev := list.head; ev != nil; ev = ev.regNext {
				events = append(events, ev)
			}
		}
		si.mu.Unlock()
		for _, ev := range events {
			r.activeLocked(ev, Signal, int(n))
		}
	}
	si.caught.Store(false)
}

func (si *signalInfo) close() {
	close(si.stopCh)
	signal.Stop(si.notifyCh)
	_ = unix.Close(si.pipeR)
	_ = unix.Close(si.pipeW)
}

// --- process-wide signal-ownership table ---
//
// Only one reactor may own a given signal number at a time; a second
// reactor subscribing to an already-owned signal gets ErrSignalOwned
// rather than silently stealing delivery. This table is genuinely
// process-wide shared state (unlike the rest of the reactor, which is
// single-threaded by design), so it alone needs a mutex.
var (
	signalOwnersMu sync.Mutex
	signalOwners   = make(map[int]*Reactor)
)

func claimSignal(signo int, r *Reactor) (*Reactor, bool) {
	signalOwnersMu.Lock()
	defer signalOwnersMu.Unlock()
	if owner, ok := signalOwners[signo]; ok {
		return owner, owner == r
	}
	signalOwners[signo] = r
	return r, true
}

func releaseSignal(signo int, r *Reactor) {
	signalOwnersMu.Lock()
	defer signalOwnersMu.Unlock()
	if signalOwners[signo] == r {
		delete(signalOwners, signo)
	}
}

func unixSignal(signo int) os.Signal {
	return syscall.Signal(signo)
}
