package reactor

import "errors"

var (
	// ErrQueueFull reports an exhausted connection table. The loop does not
	// cap its connection table, so no code path returns it.
	ErrQueueFull = errors.New("reactor: connection table full")
	// ErrUnknownFd describes an epoll event for a file descriptor the loop
	// has no connection registered for. dispatch logs and drops such an
	// event; it does not return this error.
	ErrUnknownFd = errors.New("reactor: event for unregistered descriptor")
	// ErrBadTransition is returned when a connection's state machine is
	// asked to handle an event that cannot occur in its current state.
	ErrBadTransition = errors.New("reactor: event not valid in current connection state")
)
