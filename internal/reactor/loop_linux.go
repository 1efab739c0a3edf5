//go:build linux

package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/biohotR/asynch-server/internal/obslog"
	"github.com/biohotR/asynch-server/internal/serverconfig"
)

// Loop owns the listening socket, the epoll instance, and every active
// connection. Exactly one goroutine ever calls Run; everything below is
// written assuming single-threaded access, the same invariant the
// reference implementation's single-process event loop relies on.
type Loop struct {
	cfg      serverconfig.Config
	resolver *resolver
	logger   *slog.Logger

	mux        multiplexer
	listenFd   int
	conns      map[int]*connection // keyed by client socket fd
	aioWaiters map[int]*connection // keyed by a connection's AIO eventfd, while armed
	openFiles  map[int]*os.File    // keyed by client socket fd, kept open for sendfile/AIO
}

// NewLoop builds a Loop from configuration; it does not bind or listen
// until Run is called.
func NewLoop(cfg serverconfig.Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = obslog.NewTextLogger(slog.LevelInfo)
	}
	return &Loop{
		cfg:        cfg,
		resolver:   newResolver(cfg.StaticPrefix, cfg.DynamicPrefix, cfg.StaticRoot, cfg.DynamicRoot),
		logger:     obslog.New(logger, "reactor"),
		conns:      make(map[int]*connection),
		aioWaiters: make(map[int]*connection),
		openFiles:  make(map[int]*os.File),
	}
}

// Run binds the listen address, then drives the single epoll_wait loop
// until ctx is cancelled, mirroring aws.c's main(): one w_epoll_wait call
// per turn, dispatching every ready descriptor before waiting again.
func (l *Loop) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("reactor: listen %s: %w", l.cfg.ListenAddr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("reactor: %s did not yield a TCP listener", l.cfg.ListenAddr)
	}
	lf, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return fmt.Errorf("reactor: dup listener fd: %w", err)
	}
	// The dup'd fd in lf is what the event loop drives directly; the
	// original listener can be closed once we no longer need Go's
	// net.Listener wrapper (we never Accept through it again).
	listenFd := int(lf.Fd())
	if err := unix.SetNonblock(listenFd, true); err != nil {
		ln.Close()
		lf.Close()
		return fmt.Errorf("reactor: set listener nonblocking: %w", err)
	}

	mux, err := newEpollMultiplexer()
	if err != nil {
		ln.Close()
		lf.Close()
		return err
	}
	l.mux = mux
	l.listenFd = listenFd
	if err := l.mux.add(listenFd, evRead); err != nil {
		ln.Close()
		lf.Close()
		mux.close()
		return fmt.Errorf("reactor: register listener: %w", err)
	}

	l.logger.Info("listening", "addr", l.cfg.ListenAddr)

	defer func() {
		mux.close()
		lf.Close()
		ln.Close()
		for fd := range l.conns {
			l.closeConnection(l.conns[fd])
		}
	}()

	go func() {
		<-ctx.Done()
		// Closing the epoll fd unblocks the in-progress epoll_wait with
		// EBADF, which is the cleanest cross-platform way to interrupt a
		// blocking syscall from another goroutine without signals.
		mux.close()
	}()

	events := make([]event, 256)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := l.mux.wait(events)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}
	}
}

func (l *Loop) dispatch(ev event) {
	if ev.fd == l.listenFd {
		l.acceptAll()
		return
	}
	if c, ok := l.aioWaiters[ev.fd]; ok {
		l.dispatchAIO(ev.fd, c)
		return
	}
	c, ok := l.conns[ev.fd]
	if !ok {
		l.logger.Warn("event for unknown descriptor", "fd", ev.fd)
		return
	}
	if ev.errored || ev.hangup {
		l.closeConnection(c)
		return
	}
	var interest uint32
	var closed bool
	var err error
	if ev.readable {
		interest, closed, err = l.handleReadable(c)
	} else if ev.writable {
		interest, closed, err = l.handleWritable(c)
	}
	l.applyResult(c, interest, closed, err)
}

func (l *Loop) dispatchAIO(aioFd int, c *connection) {
	// Unregister the completion descriptor before tearing it down, the
	// corrected ordering the distilled spec calls for (see DESIGN.md).
	_ = l.mux.remove(aioFd)
	delete(l.aioWaiters, aioFd)

	interest, closed, err := l.handleAIOReadable(c)
	l.applyResult(c, interest, closed, err)
}

// applyResult reconciles a state-machine step's outcome with the
// multiplexer: closing the connection, leaving socket interest alone,
// swapping to waiting on an AIO eventfd, or updating socket interest.
func (l *Loop) applyResult(c *connection, interest uint32, closed bool, err error) {
	if err != nil {
		l.logger.Debug("connection error", "fd", c.fd, "err", err)
		l.closeConnection(c)
		return
	}
	if closed {
		l.closeConnection(c)
		return
	}
	if interest == 0 && c.aioActive {
		// Mask the client socket out of epoll while the read is in
		// flight so a spurious writable event can't race startAsyncIO
		// into submitting a second request on the same context.
		if err := l.mux.modify(c.fd, 0); err != nil {
			l.logger.Debug("mask socket during aio failed", "err", err)
			l.closeConnection(c)
			return
		}
		l.aioWaiters[c.aio.EventFD()] = c
		if err := l.mux.add(c.aio.EventFD(), evRead); err != nil {
			l.logger.Debug("register aio eventfd failed", "err", err)
			l.closeConnection(c)
		}
		return
	}
	if interest != 0 {
		if err := l.mux.modify(c.fd, interest); err != nil {
			l.logger.Debug("modify interest failed", "err", err)
			l.closeConnection(c)
		}
	}
}

func (l *Loop) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(l.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR || err == unix.ECONNABORTED {
				continue
			}
			// Any other accept failure is fatal for the server process.
			l.logger.Error("accept failed", "err", err)
			os.Exit(1)
		}
		raddr := sockaddrToNetAddr(sa)
		c := newConnection(fd, raddr, l.cfg.BufferSize, l.logger)
		l.conns[fd] = c
		if err := l.mux.add(fd, evRead); err != nil {
			l.logger.Debug("register connection failed", "err", err)
			l.closeConnection(c)
			continue
		}
	}
}

// keepAlive retains the *os.File a resolved resource was opened as, so
// its descriptor is not finalized by the GC out from under the raw fd
// the sender paths use directly.
func (l *Loop) keepAlive(c *connection, f *os.File) {
	l.openFiles[c.fd] = f
}

func (l *Loop) closeConnection(c *connection) {
	if c.st == stateConnectionClosed {
		return
	}
	c.st = stateConnectionClosed
	if c.aioActive && c.aio != nil {
		if aioFd := c.aio.EventFD(); aioFd >= 0 {
			_ = l.mux.remove(aioFd)
			delete(l.aioWaiters, aioFd)
		}
		_ = c.aio.Close()
		c.aio = nil
	}
	_ = l.mux.remove(c.fd)
	if f, ok := l.openFiles[c.fd]; ok {
		f.Close()
		delete(l.openFiles, c.fd)
	}
	delete(l.conns, c.fd)
	unix.Close(c.fd)
}

func sockaddrToNetAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: v.Addr[:], Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: v.Addr[:], Port: v.Port}
	default:
		return nil
	}
}
