package transport

import (
	"trackprobe/internal/log"
)

// LoggingTransport implements Transport by writing frames to the
// debug log. Used when the WebSocket fan-out is disabled so the
// pipeline always has a frame consumer.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Info("Transport: using logging transport")
	return &LoggingTransport{}
}

// Send logs the received frame at debug level.
func (lt *LoggingTransport) Send(data any) error {
	log.Debugf("Transport: %+v", data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
