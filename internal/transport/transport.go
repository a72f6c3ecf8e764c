package transport

import "errors"

// ErrClosed is returned by Send after a transport has been closed.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for fanning out analysis frames.
// Implementations must be safe for concurrent Send calls.
type Transport interface {
	Send(data any) error
	Close() error
}
