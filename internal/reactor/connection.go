// Package reactor implements the single-threaded, event-driven file server
// engine: one goroutine multiplexes every client socket through an epoll
// instance (see epoll_linux.go), advancing each connection's own small
// state machine exactly as far as the available data or pending syscalls
// allow before returning control to the wait call. Nothing here spawns a
// goroutine per connection; concurrency comes only from overlapping kernel
// I/O (sendfile and the Linux AIO read-behind in internal/asyncio), the
// same shape as the teacher's SDOServer.Process being driven one step at a
// time from an outer select loop (pkg/sdo/server.go).
package reactor

import (
	"log/slog"
	"net"

	"github.com/biohotR/asynch-server/internal/asyncio"
	"github.com/biohotR/asynch-server/internal/httpreq"
)

// state tags every stage a connection passes through, mirroring the
// reference implementation's STATE_* constants one-for-one.
type state uint8

const (
	stateInitial state = iota
	stateReceivingData
	stateRequestReceived
	stateSendingHeader
	stateSendingData
	stateAsyncOngoing
	stateDataSent
	stateSending404
	stateConnectionClosed
)

func (s state) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateReceivingData:
		return "receiving-data"
	case stateRequestReceived:
		return "request-received"
	case stateSendingHeader:
		return "sending-header"
	case stateSendingData:
		return "sending-data"
	case stateAsyncOngoing:
		return "async-ongoing"
	case stateDataSent:
		return "data-sent"
	case stateSending404:
		return "sending-404"
	case stateConnectionClosed:
		return "connection-closed"
	default:
		return "unknown"
	}
}

// resourceKind classifies the path a request resolved to, matching
// connection_get_resource_type's static/dynamic/invalid split.
type resourceKind uint8

const (
	resourceInvalid resourceKind = iota
	resourceStatic
	resourceDynamic
)

// connection holds everything the loop needs to keep advancing one client
// socket. It is never accessed from more than one goroutine at a time —
// the loop owns it for the entire lifetime between epoll_wait calls.
type connection struct {
	fd    int
	raddr net.Addr

	st state

	parser *httpreq.Parser

	recvBuf []byte // raw bytes read off the socket, fed to parser

	resourcePath string
	kind         resourceKind

	file       *bufferedFile // open resource, nil until resolved
	headerBuf  []byte        // pending bytes to write to the socket: the
	                          // response header first, then reused to stage
	                          // each AIO-delivered body chunk for a dynamic
	                          // resource
	headerSent int           // bytes of headerBuf already written

	fileOffset int64 // sendfile cursor / AIO read cursor
	fileSize   int64

	aio       *asyncio.Context
	aioBuf    []byte
	aioActive bool

	logger *slog.Logger
}

// bufferedFile is the minimal file handle the sender paths need: the raw
// fd that sendfile and the AIO pread both address directly.
type bufferedFile struct {
	fd int
}

func newConnection(fd int, raddr net.Addr, bufSize int, logger *slog.Logger) *connection {
	return &connection{
		fd:      fd,
		raddr:   raddr,
		st:      stateInitial,
		parser:  httpreq.New(),
		recvBuf: make([]byte, 0, bufSize),
		logger:  logger.With("fd", fd),
	}
}

// reset returns the connection to its pre-request state so keep-alive
// reuse would be possible; every request closes the connection
// (HTTP/1.0 style), so nothing in the loop or the tests calls it.
func (c *connection) reset() {
	c.st = stateInitial
	c.parser.Reset()
	c.recvBuf = c.recvBuf[:0]
	c.resourcePath = ""
	c.kind = resourceInvalid
	c.file = nil
	c.headerBuf = nil
	c.headerSent = 0
	c.fileOffset = 0
	c.fileSize = 0
	c.aio = nil
	c.aioBuf = nil
	c.aioActive = false
}
