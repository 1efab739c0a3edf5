//go:build !linux

package asyncio

import "errors"

// ErrUnsupported is returned on platforms other than Linux, where the AIO
// facility this package wraps does not exist.
var ErrUnsupported = errors.New("asyncio: unsupported on this platform")

// ErrSubmitFailed mirrors the Linux build's sentinel so callers can use
// errors.Is uniformly across platforms.
var ErrSubmitFailed = errors.New("asyncio: io_submit failed")

type Context struct{}

func NewContext() (*Context, error) { return nil, ErrUnsupported }

func (c *Context) EventFD() int { return -1 }

func (c *Context) SubmitRead(fd int, buf []byte, offset int64) error { return ErrUnsupported }

func (c *Context) Result() (int64, error) { return 0, ErrUnsupported }

func (c *Context) Close() error { return nil }
