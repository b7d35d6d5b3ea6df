package reactor

import "time"

// Clock is the time source a Reactor reads from. Create detects a
// monotonic clock and prefers it; WithClock lets callers substitute a
// wall clock that can be moved programmatically, useful for testing
// backward clock-jump correction.
type Clock interface {
	// Now returns the current time. Implementations backing a monotonic
	// clock must return a value from a source that never runs backward;
	// Monotonic must then report true.
	Now() time.Time
	// Monotonic reports whether this clock is guaranteed non-decreasing.
	Monotonic() bool
}

// systemClock wraps time.Now, which on every Go-supported platform reads
// the runtime's monotonic clock reading alongside the wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) Monotonic() bool { return true }

// WallClock is a Clock backed by wall-clock time only (its monotonic
// reading is stripped via Round(0)), so that it can be observed to jump
// backward — used by tests exercising correctTime, and by callers who
// need the reactor to honor operator/NTP clock adjustments rather than
// free-running monotonic time.
type WallClock struct {
	// Offset, if non-zero, is added to every reading; tests use this to
	// simulate an operator moving the system clock backward.
	Offset time.Duration
}

func (w *WallClock) Now() time.Time { return time.Now().Round(0).Add(w.Offset) }
func (*WallClock) Monotonic() bool  { return false }

// timeCache caches the most recent clock reading for the duration of one
// loop iteration, so that callbacks asking "what time is it" during
// dispatch see the instant the backend returned from its wait rather than
// re-entering the OS clock on every call.
type timeCache struct {
	clock Clock
	cache time.Time
	zero  bool
}

func newTimeCache(c Clock) *timeCache {
	return &timeCache{clock: c, zero: true}
}

// get returns the cached value if set, else reads and does not cache
// (only the reactor's loop explicitly sets/clears the cache at
// iteration boundaries).
func (tc *timeCache) get() time.Time {
	if !tc.zero {
		return tc.cache
	}
	return tc.clock.Now()
}

func (tc *timeCache) clear() {
	tc.zero = true
}

func (tc *timeCache) set(t time.Time) {
	tc.cache = t
	tc.zero = false
}

// correctTime never shifts the heap when the clock is monotonic; it only
// records the current reading into eventTV. Otherwise it reads the wall
// clock; if now has not gone backward relative to eventTV it
// simply advances eventTV, else it shifts every timer in the heap by the
// observed backward offset (order-preserving) and sets eventTV to now.
func correctTime(tc *timeCache, clock Clock, eventTV *time.Time, heap *timerHeap) time.Time {
	if clock.Monotonic() {
		now := clock.Now()
		*eventTV = now
		return now
	}

	now := clock.Now()
	if !now.Before(*eventTV) {
		*eventTV = now
		return now
	}

	offset := eventTV.Sub(now)
	heap.shiftAll(-offset)
	*eventTV = now
	return now
}
