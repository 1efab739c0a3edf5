//go:build !linux

package reactor

import (
	"io"
	"os"
)

// sendStaticChunk falls back to a userspace pread+write on platforms with
// no sendfile(2); the reactor as a whole only runs its event loop on
// Linux (see loop_linux.go's build tag), but keeping this path compilable
// lets the package build on any host.
func sendStaticChunk(sockFd, fileFd int, offset int64, count int) (n int, wouldBlock bool, err error) {
	f := os.NewFile(uintptr(fileFd), "")
	buf := make([]byte, count)
	r, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return 0, false, err
	}
	sock := os.NewFile(uintptr(sockFd), "")
	w, err := sock.Write(buf[:r])
	if err != nil {
		return 0, false, err
	}
	return w, false, nil
}
