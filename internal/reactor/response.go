package reactor

import (
	"fmt"
	"net/http"
	"time"
)

// serverToken is this server's Server: header value, standing in for the
// C reference's borrowed "Apache/2.2.9" token (see DESIGN.md).
const serverToken = "awsd/1.0"

// These mirror the two literal header templates in the C reference
// (connection_prepare_send_reply_header / connection_prepare_send_404,
// aws.c:87-110) line for line, including the HTTP/1.1 status line the
// reference uses despite the server's overall HTTP/1.0-style connection
// handling.
const (
	okHeaderFormat = "HTTP/1.1 200 OK\r\n" +
		"Date: %s\r\n" +
		"Server: " + serverToken + "\r\n" +
		"Last-Modified: %s\r\n" +
		"Accept-Ranges: bytes\r\n" +
		"Vary: Accept-Encoding\r\n" +
		"Connection: close\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: %d\r\n\r\n"
	notFoundHeader = "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"Connection: close\r\n" +
		"\r\n"
)

// formatHTTPDate renders t in RFC 1123 UTC with a literal "GMT" zone
// name, matching format_date's "%a, %d %b %Y %H:%M:%S GMT" strftime
// pattern (net/http.TimeFormat is exactly this layout).
func formatHTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

func buildOKHeader(contentLength int64, modTime time.Time, now time.Time) []byte {
	return []byte(fmt.Sprintf(okHeaderFormat, formatHTTPDate(now), formatHTTPDate(modTime), contentLength))
}

func buildNotFoundHeader() []byte {
	return []byte(notFoundHeader)
}
