// Package obslog centralizes structured logging for the reactor package
// and cmd/awsd. It mirrors the teacher's newer-generation pkg/* logging
// convention (pkg/network, pkg/node, pkg/sdo): a *slog.Logger tagged with a
// "service" field via Logger.With, rather than a package-level global.
package obslog

import (
	"log/slog"
	"os"
)

// New returns a slog.Logger tagged with the given service name, falling
// back to slog.Default if base is nil.
func New(base *slog.Logger, service string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", service)
}

// NewTextLogger builds a text-handler logger writing to stderr at the given
// level; used by cmd/awsd when no richer logging sink is configured.
func NewTextLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
