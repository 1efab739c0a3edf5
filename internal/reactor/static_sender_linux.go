//go:build linux

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// sendStaticChunk writes as much of the file at offset as a single
// sendfile(2) call will accept, mirroring connection_send_static's
// zero-copy path. It returns the number of bytes transferred, whether
// the caller should retry once the socket is writable again (EAGAIN),
// and any other error.
func sendStaticChunk(sockFd, fileFd int, offset int64, count int) (n int, wouldBlock bool, err error) {
	off := offset
	written, err := unix.Sendfile(sockFd, fileFd, &off, count)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, true, nil
		}
		return 0, false, err
	}
	return written, false, nil
}
