package reactor

import (
	"time"
)

// LoopFlag controls a single call to (*Reactor).Loop.
type LoopFlag int

const (
	// LoopDefault runs until LoopExit/LoopBreak or no events remain.
	LoopDefault LoopFlag = 0
	// LoopOnce runs a single pass that waits for at least one event.
	LoopOnce LoopFlag = 1 << (iota - 1)
	// LoopNonBlocking runs a single pass with a zero timeout.
	LoopNonBlocking
)

// priorityUnset marks an Event whose priority has not yet been resolved
// against a reactor's priority count (resolved to P/2 in BindToReactor).
const priorityUnset = -1

// version is returned by GetVersion.
const version = "reactor/1.0"

// Reactor is the event-loop instance: owner of the backend, the timer
// heap, the per-priority active queues, and the signal trampoline. It
// is single-threaded by design: registration and Loop must run on the
// same goroutine.
type Reactor struct {
	backend backend
	clock   Clock
	tc      *timeCache

	registered eventList
	heap       timerHeap
	active     []eventList

	eventCount       int
	eventCountActive int

	gotTerm  bool
	gotBreak bool

	eventTV time.Time

	sig *signalInfo

	logger Logger

	closed bool
}

// Create allocates a Reactor: detects a clock, initializes the timer
// heap and registered-events list, tries backends in platform order,
// initializes the signal trampoline, and configures the priority levels
// (one unless WithPriorities sets more). Returns ErrNoBackend if no backend candidate initializes.
func Create(opts ...Option) (*Reactor, error) {
	cfg := resolveOptions(opts)

	b, err := selectBackend(cfg.backendOverride)
	if err != nil {
		return nil, err
	}

	clock := cfg.clock
	if clock == nil {
		clock = systemClock{}
	}

	priorities := cfg.priorities
	if priorities < 1 {
		priorities = 1
	}

	r := &Reactor{
		backend: b,
		clock:   clock,
		tc:      newTimeCache(clock),
		active:  make([]eventList, priorities),
		logger:  cfg.logger,
	}
	if r.logger == nil {
		r.logger = NoOpLogger{}
	}

	sig, err := newSignalInfo(r)
	if err != nil {
		_ = b.dealloc()
		return nil, err
	}
	r.sig = sig

	pipeEv := &Event{
		kind:     bindFD,
		fd:       sig.pipeR,
		interest: Read | Persist,
		callback: func(int, Mask, any) { r.sig.drain(r) },
		internal: true,
		priority: priorities / 2,
		flags:    stateInitialized,
		reactor:  r,
	}
	sig.ev = pipeEv

	r.logger.Info("reactor created", "backend", b.name(), "priorities", priorities)
	return r, nil
}

// GetMethod returns the name of the backend this reactor selected.
func (r *Reactor) GetMethod() string { return r.backend.name() }

// GetVersion returns the reactor package's version string.
func GetVersion() string { return version }

// SetPriorities reallocates the per-priority active-queue array to
// length p. May only be called while no event is active.
// Existing registered events retain their (now possibly out-of-range)
// priority number; callers are responsible for keeping it in range.
func (r *Reactor) SetPriorities(p int) error {
	if r.eventCountActive > 0 {
		return &InvalidStateError{Op: "SetPriorities", Reason: ErrEventsActive}
	}
	if p < 1 {
		p = 1
	}
	r.active = make([]eventList, p)
	return nil
}

// Priorities returns the reactor's current priority count.
func (r *Reactor) Priorities() int { return len(r.active) }

// SetEvent initializes ev for the given binding and interest mask
// (Persist included in interest if desired) with the given callback and
// opaque argument. ev's state becomes initialized; its priority is left
// unresolved until BindToReactor assigns a default of P/2.
func (r *Reactor) SetEvent(ev *Event, kind bindingKind, fdOrSigno int, interest Mask, cb Callback, arg any) {
	*ev = Event{
		kind:      kind,
		callback:  cb,
		arg:       arg,
		priority:  priorityUnset,
		flags:     stateInitialized,
		heapIndex: -1,
	}
	switch kind {
	case bindFD:
		ev.fd = fdOrSigno
		ev.interest = interest &^ Signal
	case bindSignal:
		ev.signo = fdOrSigno
		ev.interest = interest | Signal
	case bindNone:
		ev.interest = interest &^ (Read | Write | Signal)
	}
}

// SetFDEvent is a convenience wrapper for SetEvent with a file-descriptor
// binding.
func (r *Reactor) SetFDEvent(ev *Event, fd int, interest Mask, cb Callback, arg any) {
	r.SetEvent(ev, bindFD, fd, interest, cb, arg)
}

// SetSignalEvent is a convenience wrapper for SetEvent with a signal
// binding. Signal events are always persistent in effect (Once rejects
// signal bindings for this reason).
func (r *Reactor) SetSignalEvent(ev *Event, signo int, cb Callback, arg any) {
	r.SetEvent(ev, bindSignal, signo, Signal|Persist, cb, arg)
}

// SetTimerEvent is a convenience wrapper for SetEvent with a pure timer
// binding (no fd or signal interest).
func (r *Reactor) SetTimerEvent(ev *Event, cb Callback, arg any) {
	r.SetEvent(ev, bindNone, 0, 0, cb, arg)
}

// BindToReactor associates ev with r. Only valid while ev is in the
// initialized state; resolves ev's default priority to half the
// reactor's priority count if unset.
func (r *Reactor) BindToReactor(ev *Event) error {
	if ev.flags&stateInitialized == 0 || ev.flags&(stateInserted|stateActive) != 0 {
		return &InvalidStateError{Op: "BindToReactor", Reason: ErrNotInitialized}
	}
	if ev.priority == priorityUnset {
		ev.priority = len(r.active) / 2
	}
	if ev.priority < 0 || ev.priority >= len(r.active) {
		return &InvalidStateError{Op: "BindToReactor", Reason: ErrPriorityRange}
	}
	ev.reactor = r
	return nil
}

// Add performs the atomic registration sequence: the reactor must never
// be left partially registered by a failed Add.
func (r *Reactor) Add(ev *Event, timeout *time.Duration) error {
	// Step 1: pre-grow the heap so a later push cannot fail.
	if timeout != nil && ev.flags&stateTimeout == 0 {
		r.heap.reserve(1)
	}

	// Step 2: register fd/signal interest with the backend/signal table
	// if not already inserted or active.
	var err error
	if ev.kind != bindNone && ev.flags&(stateInserted|stateActive) == 0 {
		if ev.kind == bindSignal {
			err = r.sig.addSubscriber(ev)
		} else {
			err = r.backend.add(ev)
		}
		if err != nil {
			return &BackendError{Op: "add", Err: err}
		}
		ev.flags |= stateInserted
	}

	if ev.flags&stateCounted == 0 {
		ev.flags |= stateCounted
		r.registered.pushRegistered(ev)
		r.eventCount++
	}

	if timeout == nil {
		return nil
	}

	// Step 3: if already in the heap, erase the stale entry.
	if ev.flags&stateTimeout != 0 {
		r.heap.erase(ev)
	}

	// Step 4: if active solely due to a prior timeout, deactivate it and
	// neutralize any in-flight dispatch loop.
	if ev.flags&stateActive != 0 && ev.delivered == Timeout {
		r.deactivate(ev)
		if ev.ncalls != 0 && ev.pncalls != nil {
			*ev.pncalls = 0
		}
	}

	// Step 5: compute absolute expiry and push.
	now := r.tc.get()
	ev.timeout = now.Add(*timeout)
	r.heap.push(ev)
	return nil
}

// Del removes ev from every queue it belongs to. If ev was inserted, the
// corresponding backend or signal deregistration is performed. If ev is
// mid-dispatch, its ncalls-pointer is zeroed so the in-flight dispatch
// loop stops after the current invocation.
func (r *Reactor) Del(ev *Event) error {
	if ev.flags&stateTimeout != 0 {
		r.heap.erase(ev)
	}
	if ev.flags&stateActive != 0 {
		r.deactivate(ev)
	}

	var err error
	if ev.flags&stateInserted != 0 {
		if ev.kind == bindSignal {
			err = r.sig.removeSubscriber(ev)
		} else if ev.kind == bindFD {
			err = r.backend.del(ev)
		}
		ev.flags &^= stateInserted
	}

	if ev.flags&stateCounted != 0 {
		ev.flags &^= stateCounted
		r.registered.removeRegistered(ev)
		r.eventCount--
	}

	if ev.pncalls != nil {
		*ev.pncalls = 0
	}

	if err != nil {
		return &BackendError{Op: "del", Err: err}
	}
	return nil
}

// Active force-activates ev: if it is already active, the delivered mask
// is OR'd in; otherwise the mask and ncalls are set and ev is enqueued
// on its priority's active queue.
func (r *Reactor) Active(ev *Event, mask Mask, ncalls int) {
	r.activeLocked(ev, mask, ncalls)
}

func (r *Reactor) activeLocked(ev *Event, mask Mask, ncalls int) {
	if ev.flags&stateActive != 0 {
		ev.delivered |= mask
		return
	}
	ev.delivered = mask
	ev.ncalls = ncalls
	ev.flags |= stateActive
	r.active[ev.priority].pushActive(ev)
	r.eventCountActive++
}

func (r *Reactor) deactivate(ev *Event) {
	r.active[ev.priority].removeActive(ev)
	ev.flags &^= stateActive
	r.eventCountActive--
}

// LoopExit schedules a one-shot timer that, after delay, sets the
// reactor's termination flag (checked at the top of the next loop
// iteration).
func (r *Reactor) LoopExit(delay time.Duration) error {
	ev := &Event{heapIndex: -1, flags: stateInitialized, priority: priorityUnset, internal: true}
	ev.callback = func(int, Mask, any) { r.gotTerm = true }
	if err := r.BindToReactor(ev); err != nil {
		return err
	}
	return r.Add(ev, &delay)
}

// LoopBreak requests the loop exit as soon as the currently running
// callback returns, without tearing down any in-flight state; active
// events not yet dispatched stay queued.
func (r *Reactor) LoopBreak() {
	r.gotBreak = true
}

// Destroy tears the reactor down: every non-internal event is deleted
// first, then any internal event still pending (e.g. an unfired Once
// timer) is drained from the timer heap, the signal trampoline is
// closed, and finally the backend is deallocated. Destroy is a no-op on
// a second call. It is not safe to call Destroy concurrently with Loop.
func (r *Reactor) Destroy() error {
	if r.closed {
		return nil
	}
	r.closed = true

	for ev := r.registered.head; ev != nil; {
		next := ev.regNext
		if !ev.internal {
			_ = r.Del(ev)
		}
		ev = next
	}

	for r.heap.top() != nil {
		_ = r.Del(r.heap.pop())
	}

	if r.eventCount != 0 || r.eventCountActive != 0 {
		r.logger.Warn("reactor destroyed with non-empty queues", "registered", r.eventCount, "active", r.eventCountActive)
	}

	r.sig.close()
	return r.backend.dealloc()
}

// nextTimeout computes the backend wait-timeout for one loop iteration.
func (r *Reactor) nextTimeout(flags LoopFlag) *time.Duration {
	if r.eventCountActive == 0 && flags&LoopNonBlocking == 0 {
		if top := r.heap.top(); top != nil {
			now := r.tc.get()
			d := top.timeout.Sub(now)
			if d < 0 {
				d = 0
			}
			return &d
		}
		return nil // wait forever
	}
	zero := time.Duration(0)
	return &zero
}

// Loop runs the main loop. Returns 1 if no events are
// registered at the top of an iteration ("no events"), 0 on a clean
// flag-driven exit, and a BackendError if dispatch fails.
func (r *Reactor) Loop(flags LoopFlag) (int, error) {
	for {
		// Step 1.
		if r.gotTerm {
			r.gotTerm = false
			return 0, nil
		}
		if r.gotBreak {
			r.gotBreak = false
			return 0, nil
		}

		// Step 2: the cache holds the prior iteration's backend-return
		// instant until refreshed below; clear it at the top of every
		// iteration so nextTimeout and correctTime read a fresh "now".
		r.tc.clear()

		// Step 3.
		correctTime(r.tc, r.clock, &r.eventTV, &r.heap)

		// Step 4.
		timeout := r.nextTimeout(flags)

		// Step 5.
		if r.eventCount == 0 {
			return 1, nil
		}

		// Step 6: record now, clear the cache for the duration of dispatch.
		r.eventTV = r.tc.get()
		r.tc.clear()

		// Step 7: readiness events always enqueue with ncalls=1; signals
		// compute their own drain-coalesced ncalls via activeLocked directly.
		if err := r.backend.dispatch(timeout, func(ev *Event, mask Mask) {
			r.activeLocked(ev, mask, 1)
		}); err != nil {
			return -1, &BackendError{Op: "dispatch", Err: err}
		}

		// Step 8: cache now, then drain expired timers.
		r.tc.set(r.clock.Now())
		r.processTimers()

		// Step 9: drain the lowest-numbered non-empty priority queue,
		// chosen once at entry.
		if r.eventCountActive > 0 {
			r.processActive()
		}

		// Step 10: a single-pass flag exits after exactly one iteration,
		// regardless of how much active work remains.
		if flags&(LoopOnce|LoopNonBlocking) != 0 {
			return 0, nil
		}
	}
}

// processTimers moves every expired timer to its active queue.
func (r *Reactor) processTimers() {
	now := r.tc.get()
	for {
		top := r.heap.top()
		if top == nil || top.timeout.After(now) {
			return
		}
		ev := top
		_ = r.Del(ev)
		r.activeLocked(ev, Timeout, 1)
	}
}

// processActive drains the lowest-numbered non-empty priority queue
// chosen once at entry. A priority level that stays non-empty can
// starve lower-priority (higher-numbered) queues indefinitely.
func (r *Reactor) processActive() {
	var list *eventList
	for i := range r.active {
		if r.active[i].n > 0 {
			list = &r.active[i]
			break
		}
	}
	if list == nil {
		return
	}

	for list.head != nil {
		ev := list.head
		if ev.interest&Persist != 0 {
			r.deactivate(ev)
		} else {
			_ = r.Del(ev)
		}

		ncalls := ev.ncalls
		ev.pncalls = &ncalls
		binding := ev.fd
		if ev.kind == bindSignal {
			binding = ev.signo
		}
		for ncalls > 0 {
			ncalls--
			ev.ncalls = ncalls
			ev.callback(binding, ev.delivered, ev.arg)
			if r.gotBreak {
				return
			}
		}
	}
}
