//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend implements backend via BSD/Darwin kqueue.
type kqueueBackend struct {
	kq       int
	fds      map[int]*Event
	eventBuf []unix.Kevent_t
}

func newKqueueBackend() (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:       kq,
		fds:      make(map[int]*Event),
		eventBuf: make([]unix.Kevent_t, 256),
	}, nil
}

func (b *kqueueBackend) name() string    { return "kqueue" }
func (b *kqueueBackend) needReinit() bool { return true }

func (b *kqueueBackend) changeList(interest Mask, op func(filter int16) unix.Kevent_t) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if interest&Read != 0 {
		changes = append(changes, op(unix.EVFILT_READ))
	}
	if interest&Write != 0 {
		changes = append(changes, op(unix.EVFILT_WRITE))
	}
	return changes
}

func (b *kqueueBackend) add(ev *Event) error {
	fd := ev.fd
	changes := b.changeList(ev.interest, func(filter int16) unix.Kevent_t {
		return unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  unix.EV_ADD | unix.EV_ENABLE,
		}
	})
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return err
	}
	b.fds[fd] = ev
	return nil
}

func (b *kqueueBackend) del(ev *Event) error {
	fd := ev.fd
	if _, ok := b.fds[fd]; !ok {
		return nil
	}
	changes := b.changeList(ev.interest, func(filter int16) unix.Kevent_t {
		return unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  unix.EV_DELETE,
		}
	})
	delete(b.fds, fd)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kq, changes, nil, nil)
	return err
}

func (b *kqueueBackend) dispatch(timeout *time.Duration, active func(ev *Event, mask Mask)) error {
	var ts *unix.Timespec
	if timeout != nil {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		kev := b.eventBuf[i]
		fd := int(kev.Ident)
		ev, ok := b.fds[fd]
		if !ok {
			continue
		}
		var mask Mask
		switch kev.Filter {
		case unix.EVFILT_READ:
			mask = Read
		case unix.EVFILT_WRITE:
			mask = Write
		}
		mask &= ev.interest
		if mask != 0 {
			active(ev, mask)
		}
	}
	return nil
}

func (b *kqueueBackend) dealloc() error {
	return unix.Close(b.kq)
}
