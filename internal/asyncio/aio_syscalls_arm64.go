//go:build linux && arm64

package asyncio

// Linux AIO syscall numbers, arm64. arm64 only exposes the generic syscall
// table (include/uapi/asm-generic/unistd.h), which assigns these calls
// different numbers than amd64 does.
const (
	sysIoSetup    = 0
	sysIoDestroy  = 1
	sysIoGetevents = 4
	sysIoSubmit   = 2
)
