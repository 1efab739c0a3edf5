//go:build linux

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollMultiplexer wraps a Linux epoll instance the same direct,
// unix.-package way the teacher wraps a raw AF_CAN socket in
// pkg/can/socketcanv3: thin field, thin methods, no abstraction beyond
// what the kernel call itself needs.
type epollMultiplexer struct {
	fd int
}

func newEpollMultiplexer() (*epollMultiplexer, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &epollMultiplexer{fd: fd}, nil
}

func toEpollEvents(events uint32) uint32 {
	var e uint32
	if events&evRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&evWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (m *epollMultiplexer) add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(m.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (m *epollMultiplexer) modify(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(m.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (m *epollMultiplexer) remove(fd int) error {
	return unix.EpollCtl(m.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks until at least one descriptor is ready (or the instance is
// closed), translating to the generic event type. Like the reference
// server's single w_epoll_wait_infinite call per loop turn, this blocks
// with no timeout; the loop is expected to be torn down by closing the
// epoll fd, which unblocks wait with EBADF.
func (m *epollMultiplexer) wait(out []event) (int, error) {
	raw := make([]unix.EpollEvent, len(out))
	n, err := unix.EpollWait(m.fd, raw, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		out[i] = event{
			fd:       int(raw[i].Fd),
			readable: raw[i].Events&unix.EPOLLIN != 0,
			writable: raw[i].Events&unix.EPOLLOUT != 0,
			hangup:   raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			errored:  raw[i].Events&unix.EPOLLERR != 0,
		}
	}
	return n, nil
}

func (m *epollMultiplexer) close() error {
	return unix.Close(m.fd)
}
