//go:build linux

package asyncio

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newContextOrSkip(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext()
	if err != nil {
		t.Skipf("kernel AIO facility unavailable in this environment: %v", err)
	}
	return ctx
}

func TestSubmitReadDeliversCompletionOnEventFD(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog\n")
	f, err := os.CreateTemp(t.TempDir(), "aio-*.bin")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(content)
	require.NoError(t, err)

	ctx := newContextOrSkip(t)
	defer ctx.Close()

	buf := make([]byte, len(content))
	require.NoError(t, ctx.SubmitRead(int(f.Fd()), buf, 0))

	waitReadable(t, ctx.EventFD())

	n, err := ctx.Result()
	require.NoError(t, err)
	require.EqualValues(t, len(content), n)
	require.Equal(t, content, buf)
}

func TestSubmitReadRejectsEmptyBuffer(t *testing.T) {
	ctx := newContextOrSkip(t)
	defer ctx.Close()

	err := ctx.SubmitRead(0, nil, 0)
	require.Error(t, err)
}

func TestCloseIsIdempotentSafe(t *testing.T) {
	ctx := newContextOrSkip(t)
	require.NoError(t, ctx.Close())
	// A second Close should not panic; ring and eventFD are already reset.
	require.NoError(t, ctx.Close())
}

// waitReadable polls the eventfd briefly; AIO completion on a temp-file read
// is typically immediate, but the actual kernel timing is not under test
// control, so this is a short bounded poll rather than a fixed sleep.
func waitReadable(t *testing.T, fd int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var fds [1]unix.PollFd
	fds[0].Fd = int32(fd)
	fds[0].Events = unix.POLLIN
	for time.Now().Before(deadline) {
		n, err := unix.Poll(fds[:], 50)
		if err != nil && !errors.Is(err, unix.EINTR) {
			t.Fatalf("poll: %v", err)
		}
		if n > 0 {
			return
		}
	}
	t.Fatal("timed out waiting for AIO completion")
}
