//go:build linux

// Package asyncio wraps the Linux kernel asynchronous I/O facility (io_setup /
// io_submit / io_getevents / io_destroy, historically exposed to C programs
// through libaio) directly over raw syscalls, binding each submitted read to
// an eventfd so that completion increments the eventfd's 64-bit counter. This
// mirrors the way the reference implementation drives libaio with
// io_set_eventfd, but golang.org/x/sys/unix does not wrap these syscalls, so
// the struct layouts and syscall numbers are reproduced here the same way the
// teacher's socketcanv3 package reproduces recvmmsg with unix.Syscall6.
package asyncio

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrSubmitFailed is returned when io_submit rejects a prepared request.
var ErrSubmitFailed = errors.New("asyncio: io_submit failed")

const (
	iocbCmdPread   = 0
	iocbFlagResFD  = 1 << 0
	aioRingMaxReqs = 1
)

// aioContextT mirrors the kernel's aio_context_t (an opaque handle, an
// unsigned long on every architecture asyncio supports).
type aioContextT uintptr

// iocb mirrors struct iocb from linux/aio_abi.h on a 64-bit little-endian
// architecture (amd64, arm64): 64 bytes, 8-byte aligned.
type iocb struct {
	aioData     uint64
	aioKey      uint32
	aioRWFlags  uint32
	aioLioOpcode uint16
	aioReqPrio  int16
	aioFildes   uint32
	aioBuf      uint64
	aioNbytes   uint64
	aioOffset   int64
	aioReserved2 uint64
	aioFlags    uint32
	aioResFD    uint32
}

// ioEvent mirrors struct io_event: 32 bytes.
type ioEvent struct {
	data uint64
	obj  uint64
	res  int64
	res2 int64
}

// Context is a per-connection Linux AIO submission context together with its
// bound completion eventfd. It is never shared between connections (see
// DESIGN.md and SPEC_FULL.md section 9 "Ownership of async-I/O context").
type Context struct {
	ring       aioContextT
	eventFD    int
	pending    iocb
	pendingPtr *iocb
}

// NewContext creates an eventfd (non-blocking) and an AIO context able to
// hold a single in-flight request, matching connection_start_async_io's
// capacity argument of 1.
func NewContext() (*Context, error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("asyncio: eventfd: %w", err)
	}

	c := &Context{eventFD: efd}
	if err := ioSetup(aioRingMaxReqs, &c.ring); err != nil {
		unix.Close(efd)
		return nil, fmt.Errorf("asyncio: io_setup: %w", err)
	}
	return c, nil
}

// EventFD returns the completion descriptor to register with the readiness
// multiplexer.
func (c *Context) EventFD() int {
	return c.eventFD
}

// SubmitRead prepares and submits a single positional read of len(buf) bytes
// from fd at the given offset, bound to the context's eventfd.
func (c *Context) SubmitRead(fd int, buf []byte, offset int64) error {
	if len(buf) == 0 {
		return errors.New("asyncio: zero-length read")
	}
	c.pending = iocb{
		aioLioOpcode: iocbCmdPread,
		aioFildes:    uint32(fd),
		aioBuf:       uint64(uintptr(unsafe.Pointer(&buf[0]))),
		aioNbytes:    uint64(len(buf)),
		aioOffset:    offset,
		aioFlags:     iocbFlagResFD,
		aioResFD:     uint32(c.eventFD),
	}
	c.pendingPtr = &c.pending

	if err := ioSubmit(c.ring, 1, &c.pendingPtr); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	return nil
}

// Result drains one completion event after the eventfd has reported
// readiness, returning the number of bytes the kernel read (res may be
// smaller than requested on a short read, or negative on error).
func (c *Context) Result() (int64, error) {
	var events [1]ioEvent
	n, err := ioGetEvents(c.ring, 0, 1, &events[0])
	if err != nil {
		return 0, fmt.Errorf("asyncio: io_getevents: %w", err)
	}
	if n == 0 {
		return 0, errors.New("asyncio: no completion available")
	}
	if events[0].res < 0 {
		return 0, fmt.Errorf("asyncio: read failed: errno %d", -events[0].res)
	}
	return events[0].res, nil
}

// Close destroys the AIO context and closes the eventfd. Calling it again
// is a no-op. The caller is responsible for unregistering the eventfd from
// the readiness multiplexer first (see dispatchAIO in the reactor package).
func (c *Context) Close() error {
	var firstErr error
	if c.ring != 0 {
		if err := ioDestroy(c.ring); err != nil {
			firstErr = fmt.Errorf("asyncio: io_destroy: %w", err)
		}
		c.ring = 0
	}
	if c.eventFD >= 0 {
		if err := unix.Close(c.eventFD); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("asyncio: close eventfd: %w", err)
		}
		c.eventFD = -1
	}
	return firstErr
}

func ioSetup(nrEvents uint32, ctxp *aioContextT) error {
	_, _, errno := unix.Syscall(sysIoSetup, uintptr(nrEvents), uintptr(unsafe.Pointer(ctxp)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioDestroy(ctx aioContextT) error {
	_, _, errno := unix.Syscall(sysIoDestroy, uintptr(ctx), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioSubmit(ctx aioContextT, nr int64, iocbpp **iocb) error {
	_, _, errno := unix.Syscall(sysIoSubmit, uintptr(ctx), uintptr(nr), uintptr(unsafe.Pointer(iocbpp)))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioGetEvents(ctx aioContextT, minNr, nr int64, events *ioEvent) (int, error) {
	// A zeroed timespec makes io_getevents return immediately with whatever
	// is already completed; the reactor only calls this after the eventfd
	// has reported a completion, so it never blocks here.
	var ts unix.Timespec
	n, _, errno := unix.Syscall6(sysIoGetevents, uintptr(ctx), uintptr(minNr), uintptr(nr),
		uintptr(unsafe.Pointer(events)), uintptr(unsafe.Pointer(&ts)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}
