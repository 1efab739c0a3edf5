//go:build linux

package reactor

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/biohotR/asynch-server/internal/obslog"
	"github.com/biohotR/asynch-server/internal/serverconfig"
)

// newLoopbackPair returns a real TCP connection pair: serverFd is the raw,
// non-blocking descriptor the reactor's sender paths (sendfile included)
// drive directly, and client is the ordinary net.Conn a test uses to write
// requests and read responses. A loopback TCP socket is used instead of a
// pipe or AF_UNIX pair because sendfile(2) on Linux is only reliably
// supported with a socket out_fd.
func newLoopbackPair(t *testing.T) (serverFd int, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	var server net.Conn
	select {
	case server = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out accepting loopback connection")
	}

	tcpServer := server.(*net.TCPConn)
	f, err := tcpServer.File()
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	fd := int(f.Fd())
	require.NoError(t, unix.SetNonblock(fd, true))
	return fd, client
}

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "static", "hello.html"), []byte("hello world\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dynamic"), 0o755))

	cfg := serverconfig.Config{
		ListenAddr:    ":0",
		StaticPrefix:  "/static/",
		DynamicPrefix: "/dynamic/",
		StaticRoot:    root,
		DynamicRoot:   root,
		BufferSize:    8192,
	}
	return NewLoop(cfg, obslog.NewTextLogger(0))
}

func readAll(t *testing.T, r io.Reader, deadline time.Duration) []byte {
	t.Helper()
	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf, err := io.ReadAll(r)
		done <- result{buf, err}
	}()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		return res.buf
	case <-time.After(deadline):
		t.Fatal("timed out reading response")
		return nil
	}
}

func TestHandleReadableAndWritableServesStaticFile(t *testing.T) {
	l := newTestLoop(t)
	fd, client := newLoopbackPair(t)
	c := newConnection(fd, nil, l.cfg.BufferSize, l.logger)

	_, err := client.Write([]byte("GET /static/hello.html HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)

	var interest uint32
	var closed bool
	for i := 0; i < 10 && !closed; i++ {
		interest, closed, err = l.handleReadable(c)
		require.NoError(t, err)
		if c.st == stateRequestReceived || c.st == stateSendingHeader {
			break
		}
	}
	require.Equal(t, evWrite, interest)
	require.False(t, closed)

	for !closed {
		interest, closed, err = l.handleWritable(c)
		require.NoError(t, err)
		_ = interest
	}
	// The handlers only report closed; closing the socket is the loop's
	// job (closeConnection), so end the server's side of the stream here
	// to let the client read the response to EOF.
	require.NoError(t, unix.Shutdown(fd, unix.SHUT_WR))

	client.(*net.TCPConn).CloseWrite()
	got := string(readAll(t, client, 2*time.Second))
	headerEnd := strings.Index(got, "\r\n\r\n")
	require.NotEqual(t, -1, headerEnd)
	header, body := got[:headerEnd], got[headerEnd+4:]

	require.True(t, strings.HasPrefix(header, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, header, "\r\nServer: awsd/1.0\r\n")
	require.Contains(t, header, "\r\nAccept-Ranges: bytes\r\n")
	require.Contains(t, header, "\r\nVary: Accept-Encoding\r\n")
	require.Contains(t, header, "\r\nConnection: close\r\n")
	require.Contains(t, header, "\r\nContent-Type: text/html\r\n")
	require.Contains(t, header, "\r\nContent-Length: 12\r\n")
	require.Contains(t, header, "\r\nDate: ")
	require.Contains(t, header, "\r\nLast-Modified: ")
	require.Equal(t, "hello world\n", body)
}

// TestHandleReadableServes404WhenHeadersExceedBufferSize exercises the
// aws.c receive_data boundary: a request that never sends a terminating
// "\r\n\r\n" within BufferSize bytes is forced to a 404 rather than
// looping on evRead forever.
func TestHandleReadableServes404WhenHeadersExceedBufferSize(t *testing.T) {
	l := newTestLoop(t)
	fd, client := newLoopbackPair(t)
	c := newConnection(fd, nil, l.cfg.BufferSize, l.logger)

	// No CRLF anywhere in this payload, so the request line itself never
	// finishes parsing and no path is ever extracted.
	flood := "GET /" + strings.Repeat("a", 2*l.cfg.BufferSize)
	require.Greater(t, len(flood), l.cfg.BufferSize)
	go func() {
		client.Write([]byte(flood))
	}()

	var closed bool
	var interest uint32
	var err error
	for i := 0; i < 64 && c.st != stateSending404 && !closed; i++ {
		interest, closed, err = l.handleReadable(c)
		require.NoError(t, err)
	}
	require.Equal(t, stateSending404, c.st)
	require.Equal(t, evWrite, interest)
	require.False(t, closed)

	for !closed {
		_, closed, err = l.handleWritable(c)
		require.NoError(t, err)
	}
	require.NoError(t, unix.Shutdown(fd, unix.SHUT_WR))

	client.(*net.TCPConn).CloseWrite()
	got := string(readAll(t, client, 2*time.Second))
	want := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"Connection: close\r\n" +
		"\r\n"
	require.Equal(t, want, got)
}

func TestHandleReadableServes404ForUnknownPath(t *testing.T) {
	l := newTestLoop(t)
	fd, client := newLoopbackPair(t)
	c := newConnection(fd, nil, l.cfg.BufferSize, l.logger)

	_, err := client.Write([]byte("GET /static/does-not-exist.html HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)

	var closed bool
	var interest uint32
	for i := 0; i < 10 && c.st != stateSending404; i++ {
		interest, closed, err = l.handleReadable(c)
		require.NoError(t, err)
	}
	require.Equal(t, evWrite, interest)
	require.False(t, closed)

	for !closed {
		_, closed, err = l.handleWritable(c)
		require.NoError(t, err)
	}
	require.NoError(t, unix.Shutdown(fd, unix.SHUT_WR))

	client.(*net.TCPConn).CloseWrite()
	got := string(readAll(t, client, 2*time.Second))
	want := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"Connection: close\r\n" +
		"\r\n"
	require.Equal(t, want, got)
}
