//go:build !linux

package reactor

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/biohotR/asynch-server/internal/obslog"
	"github.com/biohotR/asynch-server/internal/serverconfig"
)

// ErrUnsupportedPlatform is returned by Run on any OS other than Linux:
// the reactor's whole design rests on epoll, sendfile, and Linux AIO, none
// of which this package emulates elsewhere. The type still builds on other
// platforms so the package compiles there; statemachine_test.go is
// Linux-only, and resolver_test.go and response_test.go are the tests that
// run on other hosts.
var ErrUnsupportedPlatform = errors.New("reactor: unsupported platform")

type Loop struct {
	cfg      serverconfig.Config
	resolver *resolver
	logger   *slog.Logger

	mux        multiplexer
	listenFd   int
	conns      map[int]*connection
	aioWaiters map[int]*connection
	openFiles  map[int]*os.File
}

func NewLoop(cfg serverconfig.Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = obslog.NewTextLogger(slog.LevelInfo)
	}
	return &Loop{
		cfg:        cfg,
		resolver:   newResolver(cfg.StaticPrefix, cfg.DynamicPrefix, cfg.StaticRoot, cfg.DynamicRoot),
		logger:     obslog.New(logger, "reactor"),
		conns:      make(map[int]*connection),
		aioWaiters: make(map[int]*connection),
		openFiles:  make(map[int]*os.File),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	return ErrUnsupportedPlatform
}

func (l *Loop) keepAlive(c *connection, f *os.File) {
	l.openFiles[c.fd] = f
}
