//go:build linux && amd64

package asyncio

// Linux AIO syscall numbers, amd64. Not exposed by golang.org/x/sys/unix;
// taken from the kernel's arch/x86/entry/syscalls/syscall_64.tbl, the same
// way the teacher hardcodes unix.SYS_RECVMMSG-style raw syscall numbers in
// pkg/can/socketcanv3.
const (
	sysIoSetup    = 206
	sysIoDestroy  = 207
	sysIoGetevents = 208
	sysIoSubmit   = 209
)
