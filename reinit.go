package reactor

// Reinit re-creates the backend in place and re-registers every fd/signal
// event against the new instance. Call this after a fork in the child
// process, before resuming Loop: kernel-resident backend state (epoll/kqueue
// fds) does not survive fork even though the fd numbers themselves do, so
// the stale backend must be discarded and every interest re-added from the
// registered-events list.
//
// If the current backend reports needReinit() == false, Reinit is a no-op.
// A failed individual re-add is recorded via the logger and does not abort
// the walk; the returned error, if any, is the first one encountered.
func (r *Reactor) Reinit() error {
	if !r.backend.needReinit() {
		return nil
	}

	old := r.backend
	b, err := selectBackend("")
	if err != nil {
		return err
	}
	_ = old.dealloc()
	r.backend = b

	var firstErr error
	for ev := r.registered.head; ev != nil; ev = ev.regNext {
		if ev.kind != bindFD {
			continue
		}
		ev.flags &^= stateInserted
		if err := r.backend.add(ev); err != nil {
			r.logger.Warn("reinit: re-add failed", "fd", ev.fd, "err", err)
			if firstErr == nil {
				firstErr = &BackendError{Op: "reinit", Err: err}
			}
			continue
		}
		ev.flags |= stateInserted
	}

	if r.sig.added {
		r.sig.added = false
		if err := r.backend.add(r.sig.ev); err != nil {
			r.logger.Warn("reinit: self-pipe re-add failed", "err", err)
			if firstErr == nil {
				firstErr = &BackendError{Op: "reinit", Err: err}
			}
		} else {
			r.sig.added = true
		}
	}

	return firstErr
}
