//go:build unix

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend implements backend via poll(2), using golang.org/x/sys/unix
// as the epoll and kqueue backends do. Used as the portable fallback when
// no kernel-native backend is available, and as a deterministic backend
// for cross-platform tests.
type pollBackend struct {
	fds map[int]*Event
}

func newPollBackend() (backend, error) {
	return &pollBackend{fds: make(map[int]*Event)}, nil
}

func (b *pollBackend) name() string    { return "poll" }
func (b *pollBackend) needReinit() bool { return false }

func (b *pollBackend) add(ev *Event) error {
	b.fds[ev.fd] = ev
	return nil
}

func (b *pollBackend) del(ev *Event) error {
	delete(b.fds, ev.fd)
	return nil
}

func (b *pollBackend) dispatch(timeout *time.Duration, active func(ev *Event, mask Mask)) error {
	if len(b.fds) == 0 {
		if timeout != nil {
			time.Sleep(*timeout)
		}
		return nil
	}

	fds := make([]unix.PollFd, 0, len(b.fds))
	order := make([]*Event, 0, len(b.fds))
	for _, ev := range b.fds {
		var events int16
		if ev.interest&Read != 0 {
			events |= unix.POLLIN
		}
		if ev.interest&Write != 0 {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(ev.fd), Events: events})
		order = append(order, ev)
	}

	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
		if ms < 0 {
			ms = 0
		}
	}

	_, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i, pfd := range fds {
		var mask Mask
		if pfd.Revents&unix.POLLIN != 0 {
			mask |= Read
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			mask |= Write
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			mask |= Read | Write
		}
		mask &= order[i].interest
		if mask != 0 {
			active(order[i], mask)
		}
	}
	return nil
}

func (b *pollBackend) dealloc() error {
	b.fds = nil
	return nil
}
