//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend implements backend via Linux epoll, keyed by a map from
// fd to *Event rather than a fixed-size array, which suits a dynamic
// registration set of arbitrary fds.
type epollBackend struct {
	epfd     int
	fds      map[int]*Event
	eventBuf []unix.EpollEvent
}

func newEpollBackend() (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{
		epfd:     epfd,
		fds:      make(map[int]*Event),
		eventBuf: make([]unix.EpollEvent, 256),
	}, nil
}

func (b *epollBackend) name() string { return "epoll" }

func (b *epollBackend) needReinit() bool { return true }

func interestToEpoll(interest Mask) uint32 {
	var e uint32
	if interest&Read != 0 {
		e |= unix.EPOLLIN
	}
	if interest&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToMask(e uint32) Mask {
	var m Mask
	if e&unix.EPOLLIN != 0 {
		m |= Read
	}
	if e&unix.EPOLLOUT != 0 {
		m |= Write
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= Read | Write
	}
	return m
}

func (b *epollBackend) add(ev *Event) error {
	fd := ev.fd
	_, existing := b.fds[fd]
	ee := &unix.EpollEvent{Events: interestToEpoll(ev.interest), Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if existing {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(b.epfd, op, fd, ee); err != nil {
		return err
	}
	b.fds[fd] = ev
	return nil
}

func (b *epollBackend) del(ev *Event) error {
	fd := ev.fd
	if _, ok := b.fds[fd]; !ok {
		return nil
	}
	delete(b.fds, fd)
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) dispatch(timeout *time.Duration, active func(ev *Event, mask Mask)) error {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
		if ms < 0 {
			ms = 0
		}
	}
	n, err := unix.EpollWait(b.epfd, b.eventBuf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		ev, ok := b.fds[fd]
		if !ok {
			continue
		}
		mask := epollToMask(b.eventBuf[i].Events) & ev.interest
		if mask != 0 {
			active(ev, mask)
		}
	}
	return nil
}

func (b *epollBackend) dealloc() error {
	return unix.Close(b.epfd)
}
