package reactor

import "time"

// OnceFD registers a self-freeing one-shot event bound to fd: the
// Persist bit is always stripped from mask, so the event removes
// itself from the reactor immediately before its callback runs,
// regardless of what mask contains. If timeout is non-nil it races the
// fd readiness: whichever fires first cancels the other.
func (r *Reactor) OnceFD(fd int, mask Mask, timeout *time.Duration, cb Callback, arg any) (*Event, error) {
	return r.once(bindFD, fd, mask&^Persist, timeout, cb, arg)
}

// OnceTimer registers a self-freeing one-shot timer.
func (r *Reactor) OnceTimer(timeout time.Duration, cb Callback, arg any) (*Event, error) {
	return r.once(bindNone, 0, 0, &timeout, cb, arg)
}

// OnceSignal always fails with ErrSignalOnce: a signal binding is
// inherently persistent (the reactor must keep listening for further
// deliveries of the same signal), so it cannot be expressed as a
// one-shot event.
func (r *Reactor) OnceSignal(int) (*Event, error) {
	return nil, ErrSignalOnce
}

func (r *Reactor) once(kind bindingKind, fdOrSigno int, mask Mask, timeout *time.Duration, cb Callback, arg any) (*Event, error) {
	ev := &Event{}
	r.SetEvent(ev, kind, fdOrSigno, mask, cb, arg)
	ev.internal = true
	if err := r.BindToReactor(ev); err != nil {
		return nil, err
	}
	if err := r.Add(ev, timeout); err != nil {
		return nil, err
	}
	return ev, nil
}
