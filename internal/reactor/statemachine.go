package reactor

import (
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// sendChunkSize caps how much of a static file one sendfile call is asked
// to move at a time (64 KiB). AIO reads for dynamic resources are sized by
// cfg.BufferSize instead.
const sendChunkSize = 1 << 16

// handleReadable advances a connection that epoll reported as readable.
// It is only ever called while the connection is still receiving the
// request (stateInitial or stateReceivingData); once a full request has
// been parsed the connection stops being interested in read events.
//
// Bytes accumulate in c.recvBuf, capped at its original capacity
// (cfg.BufferSize), matching aws.c's receive_data: recv() is bounded to
// BUFSIZ - recv_len, and hitting that cap forces STATE_REQUEST_RECEIVED
// even if is_request_complete never saw a blank line — whatever the
// parser managed to extract by then is what gets served, or a 404 if it
// didn't even get a valid request line.
func (l *Loop) handleReadable(c *connection) (interest uint32, closed bool, err error) {
	room := cap(c.recvBuf) - len(c.recvBuf)
	if room == 0 {
		return l.beginNotFound(c)
	}

	start := len(c.recvBuf)
	c.recvBuf = c.recvBuf[:start+room]
	n, err := unix.Read(c.fd, c.recvBuf[start:])
	if err != nil {
		c.recvBuf = c.recvBuf[:start]
		if err == unix.EAGAIN {
			return evRead, false, nil
		}
		return 0, true, err
	}
	if n == 0 {
		c.recvBuf = c.recvBuf[:start]
		// Peer closed before sending a complete request.
		return 0, true, nil
	}
	c.recvBuf = c.recvBuf[:start+n]

	c.st = stateReceivingData
	_, done, perr := c.parser.Feed(c.recvBuf[start : start+n])
	if perr != nil {
		// A malformed request is answered with 404, same as a resource
		// that doesn't resolve — the reference server does not
		// distinguish a bad request line from a missing file at the
		// wire level.
		return l.beginNotFound(c)
	}
	if !done {
		if len(c.recvBuf) >= cap(c.recvBuf) {
			c.st = stateRequestReceived
			return l.resolveAndBeginResponse(c)
		}
		return evRead, false, nil
	}

	c.st = stateRequestReceived
	return l.resolveAndBeginResponse(c)
}

// resolveAndBeginResponse classifies and opens the requested resource,
// then prepares the header for the first writable event.
func (l *Loop) resolveAndBeginResponse(c *connection) (uint32, bool, error) {
	path, ok := c.parser.Path()
	if !ok {
		return l.beginNotFound(c)
	}
	c.resourcePath = path

	f, kind, err := l.resolver.open(path)
	if err != nil {
		return l.beginNotFound(c)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return l.beginNotFound(c)
	}

	c.kind = kind
	c.file = &bufferedFile{fd: int(f.Fd())}
	c.fileSize = fi.Size()
	c.fileOffset = 0
	c.headerBuf = buildOKHeader(c.fileSize, fi.ModTime(), time.Now())
	c.headerSent = 0
	c.st = stateSendingHeader
	// Keep the *os.File reachable so its fd is not finalized by the GC
	// out from under the raw descriptor the sender paths use.
	l.keepAlive(c, f)
	return evWrite, false, nil
}

func (l *Loop) beginNotFound(c *connection) (uint32, bool, error) {
	c.kind = resourceInvalid
	c.headerBuf = buildNotFoundHeader()
	c.headerSent = 0
	c.st = stateSending404
	return evWrite, false, nil
}

// handleWritable advances a connection through header transmission and
// then the resource-specific body transmission.
func (l *Loop) handleWritable(c *connection) (interest uint32, closed bool, err error) {
	switch c.st {
	case stateSendingHeader, stateSending404:
		sent, wouldBlock, werr := writeBuffered(c.fd, c.headerBuf, c.headerSent)
		c.headerSent = sent
		if werr != nil {
			return 0, true, werr
		}
		if wouldBlock {
			return evWrite, false, nil
		}
		if c.headerSent < len(c.headerBuf) {
			return evWrite, false, nil
		}
		if c.st == stateSending404 {
			return 0, true, nil
		}
		if c.kind == resourceStatic {
			c.st = stateSendingData
			return l.sendStatic(c)
		}
		c.st = stateAsyncOngoing
		if err := startAsyncIO(c, l.cfg.BufferSize); err != nil {
			if errors.Is(err, io.EOF) {
				// Zero-length dynamic resource: nothing left to send.
				return 0, true, nil
			}
			return 0, true, err
		}
		return 0, false, nil // interest now driven by the AIO eventfd, not the socket

	case stateSendingData:
		return l.sendStatic(c)

	case stateAsyncOngoing:
		// Dynamic resource bytes already fetched; this writable event is
		// for the client socket, flushing whatever completeAsyncIO staged.
		sent, wouldBlock, werr := writeBuffered(c.fd, c.headerBuf, c.headerSent)
		c.headerSent = sent
		if werr != nil {
			return 0, true, werr
		}
		if wouldBlock || c.headerSent < len(c.headerBuf) {
			return evWrite, false, nil
		}
		if c.fileOffset >= c.fileSize {
			return 0, true, nil
		}
		if err := startAsyncIO(c, l.cfg.BufferSize); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, true, nil
			}
			return 0, true, err
		}
		return 0, false, nil

	default:
		return 0, true, ErrBadTransition
	}
}

// sendStatic drives zero-copy sendfile transmission until the file is
// exhausted or the socket signals backpressure.
func (l *Loop) sendStatic(c *connection) (uint32, bool, error) {
	for c.fileOffset < c.fileSize {
		remaining := c.fileSize - c.fileOffset
		count := sendChunkSize
		if int64(count) > remaining {
			count = int(remaining)
		}
		n, wouldBlock, err := sendStaticChunk(c.fd, c.file.fd, c.fileOffset, count)
		if err != nil {
			return 0, true, err
		}
		if wouldBlock {
			return evWrite, false, nil
		}
		if n == 0 {
			return 0, true, nil
		}
		c.fileOffset += int64(n)
	}
	c.st = stateDataSent
	return 0, true, nil
}

// handleAIOReadable is invoked when a connection's private AIO eventfd
// (not its client socket) becomes readable, reaping the completion and
// queuing the bytes it delivered for the socket.
func (l *Loop) handleAIOReadable(c *connection) (interest uint32, closed bool, err error) {
	done, err := completeAsyncIO(c)
	if err != nil {
		return 0, true, err
	}
	_ = done
	return evWrite, false, nil
}
