package reactor

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/biohotR/asynch-server/internal/asyncio"
)

// startAsyncIO submits the next Linux AIO read for a dynamic resource on a
// freshly created c.aio, following connection_start_async_io: it is called
// once per chunk, and each chunk's completion is delivered on that
// context's private eventfd rather than through a synchronous read.
func startAsyncIO(c *connection, bufSize int) error {
	remaining := c.fileSize - c.fileOffset
	if remaining <= 0 {
		return io.EOF
	}

	ctx, err := asyncio.NewContext()
	if err != nil {
		return fmt.Errorf("reactor: start async io: %w", err)
	}
	c.aio = ctx
	if cap(c.aioBuf) < bufSize {
		c.aioBuf = make([]byte, bufSize)
	}
	c.aioBuf = c.aioBuf[:bufSize]
	if int64(len(c.aioBuf)) > remaining {
		c.aioBuf = c.aioBuf[:remaining]
	}

	if err := c.aio.SubmitRead(c.file.fd, c.aioBuf, c.fileOffset); err != nil {
		// Tear the context down and recreate it once before giving up.
		_ = c.aio.Close()
		c.aio = nil
		ctx, nerr := asyncio.NewContext()
		if nerr != nil {
			return fmt.Errorf("reactor: submit read: %w", err)
		}
		c.aio = ctx
		if err := c.aio.SubmitRead(c.file.fd, c.aioBuf, c.fileOffset); err != nil {
			_ = c.aio.Close()
			c.aio = nil
			return fmt.Errorf("reactor: submit read: %w", err)
		}
	}
	c.aioActive = true
	return nil
}

// completeAsyncIO reaps the pending AIO completion and stages the bytes it
// delivered in c.headerBuf for the socket, matching complete_async_io's
// read-then-write shape (the reference implementation writes the whole
// buffer in one blocking write; the client socket here is non-blocking, so
// handleWritable flushes the staged bytes on later writable events).
func completeAsyncIO(c *connection) (done bool, err error) {
	n, err := c.aio.Result()
	if err != nil {
		return false, fmt.Errorf("reactor: aio result: %w", err)
	}
	c.fileOffset += n
	c.headerBuf = append(c.headerBuf[:0], c.aioBuf[:n]...)
	c.headerSent = 0

	// The loop's dispatchAIO has already unregistered the completion
	// descriptor while it was still open; only now is it closed. The C
	// reference does this in the opposite order (destroy context and
	// close the eventfd before telling epoll to forget it).
	c.aioActive = false
	if err := c.aio.Close(); err != nil {
		return false, fmt.Errorf("reactor: close aio context: %w", err)
	}
	c.aio = nil

	return c.fileOffset >= c.fileSize, nil
}

// writeBuffered flushes as much of buf[sent:] to fd as the socket will
// currently accept without blocking.
func writeBuffered(fd int, buf []byte, sent int) (newSent int, wouldBlock bool, err error) {
	n, err := unix.Write(fd, buf[sent:])
	if err != nil {
		if err == unix.EAGAIN {
			return sent, true, nil
		}
		return sent, false, err
	}
	return sent + n, false, nil
}
