package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildOKHeader(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	modTime := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	got := string(buildOKHeader(12, modTime, now))
	want := "HTTP/1.1 200 OK\r\n" +
		"Date: Fri, 01 Mar 2024 12:00:00 GMT\r\n" +
		"Server: awsd/1.0\r\n" +
		"Last-Modified: Tue, 02 Jan 2024 03:04:05 GMT\r\n" +
		"Accept-Ranges: bytes\r\n" +
		"Vary: Accept-Encoding\r\n" +
		"Connection: close\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: 12\r\n\r\n"
	assert.Equal(t, want, got)
}

func TestBuildNotFoundHeader(t *testing.T) {
	got := string(buildNotFoundHeader())
	want := "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"Connection: close\r\n" +
		"\r\n"
	assert.Equal(t, want, got)
}
