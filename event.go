package reactor

import "time"

// Mask is a bitset of the interest/delivery kinds a callback may be
// notified about. The same bit values serve both as the interest mask
// passed at registration time and the delivered mask passed to the
// callback.
type Mask uint16

const (
	// Read indicates interest in, or delivery of, fd readability.
	Read Mask = 1 << iota
	// Write indicates interest in, or delivery of, fd writability.
	Write
	// Signal indicates delivery of a subscribed process signal.
	Signal
	// Timeout indicates the event's timer expired.
	Timeout
	// Persist, set only at registration, means readiness delivery does
	// not auto-unregister the event (it is never set in a delivered
	// mask).
	Persist
)

// state is the set of membership flags a reactor tracks for an event.
// These flags exactly mirror the event's membership in the registered
// list, the backend/signal registration, the timer heap, and the active
// queue.
type state uint8

const (
	stateInitialized state = 1 << iota
	stateInserted          // registered with backend or signal table
	stateActive            // present in an active queue
	stateTimeout           // present in the timer heap
	stateCounted           // counted in the reactor's eventCount
)

// Callback is invoked when an event fires. binding is the fd or signal
// number the event concerns (0 for a pure timer), mask is the subset of
// {Read, Write, Signal, Timeout} delivered this dispatch, and arg is the
// opaque value passed to SetEvent.
type Callback func(binding int, mask Mask, arg any)

// bindingKind distinguishes the tagged union of what an Event is bound to.
type bindingKind uint8

const (
	bindNone bindingKind = iota
	bindFD
	bindSignal
)

// Event is a registration record: interest in fd readiness, a signal, or
// a timer (or a timer combined with an fd/signal). The reactor never owns
// an Event's storage; the caller constructs, registers, and eventually
// discards it.
//
// An Event must be initialized with (*Reactor).SetEvent before use, and
// must not be copied after registration.
type Event struct {
	kind     bindingKind
	fd       int
	signo    int
	interest Mask // Read/Write/Signal bits of interest, plus Persist

	callback Callback
	arg      any

	priority int

	flags state

	delivered Mask // mask delivered in the current dispatch

	ncalls   int  // outstanding signal deliveries
	pncalls  *int // aliases the loop's on-stack counter during dispatch
	internal bool

	timeout   time.Time // absolute expiry, meaningful iff flags&stateTimeout
	heapIndex int        // position in the timer heap, for O(log n) removal

	reactor *Reactor

	// Intrusive doubly-linked list membership fields.
	regNext, regPrev *Event // registered-events list
	actNext, actPrev *Event // this event's active queue
}

// Pending reports whether the event is registered (inserted, active, or in
// the timer heap) for any of the kinds in mask (any kind when mask is 0)
// and, for mask&Timeout != 0 with a non-nil out, writes the remaining
// time until the event's timer fires (a Duration, not the absolute
// wall-clock instant the *time.Timeval out-param held upstream).
func (ev *Event) Pending(mask Mask, out *time.Duration) bool {
	pending := ev.flags&(stateInserted|stateActive|stateTimeout) != 0
	if !pending {
		return false
	}
	have := ev.interest | ev.delivered
	if ev.flags&stateTimeout != 0 {
		have |= Timeout
		if out != nil && mask&Timeout != 0 {
			*out = time.Until(ev.timeout)
		}
	}
	return have&mask != 0 || mask == 0
}

// Priority returns the event's dispatch priority (lower numerals dispatch
// first).
func (ev *Event) Priority() int { return ev.priority }

// SetPriority overrides the event's dispatch priority, which otherwise
// defaults to half the reactor's configured priority count. Has no effect
// while the event is active. BindToReactor range-checks the priority
// against the reactor's current priority count; a value set after
// BindToReactor is not checked.
func (ev *Event) SetPriority(p int) {
	if ev.flags&stateActive != 0 {
		return
	}
	ev.priority = p
}

// FD returns the event's bound file descriptor, or -1 if it is not
// fd-bound.
func (ev *Event) FD() int {
	if ev.kind != bindFD {
		return -1
	}
	return ev.fd
}

// Signo returns the event's bound signal number, or -1 if it is not
// signal-bound.
func (ev *Event) Signo() int {
	if ev.kind != bindSignal {
		return -1
	}
	return ev.signo
}
