package wire

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"trackprobe/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("sender is closed")

// Sender transmits encoded messages to the control application over a
// dialed UDP socket. It is safe for concurrent use; the connected flag
// drops on send failure so callers can trigger Reconnect from their
// housekeeping loop.
type Sender struct {
	mu         sync.Mutex // Protects conn and flags during Send/Close/Reconnect
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	connected  bool
	closed     bool

	// Reconnect pacing
	attempts int
	delay    time.Duration
}

// NewSender dials the control endpoint. The address is "host:port",
// e.g. "127.0.0.1:8999". attempts and delay govern Reconnect.
func NewSender(targetAddress string, attempts int, delay time.Duration) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve control address '%s': %w", targetAddress, err)
	}

	// No local bind needed for sending; nil local address lets the OS
	// pick.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial control endpoint '%s': %w", targetAddress, err)
	}

	log.Infof("Sender: connection established to %s", conn.RemoteAddr().String())

	if attempts <= 0 {
		attempts = 1
	}

	return &Sender{
		conn:       conn,
		targetAddr: udpAddr,
		connected:  true,
		attempts:   attempts,
		delay:      delay,
	}, nil
}

// Send encodes and transmits a message. A write failure marks the
// sender disconnected but leaves it usable for Reconnect.
func (s *Sender) Send(msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	// Hold the lock across the write so Close cannot race it. UDP
	// writes are fast but can block under OS buffer pressure.
	_, err = s.conn.Write(data)
	if err != nil {
		s.connected = false
	}
	s.mu.Unlock()

	if err != nil {
		log.Warnf("Sender: error sending %s: %v", msg.Addr, err)
		return fmt.Errorf("failed to send %s: %w", msg.Addr, err)
	}
	return nil
}

// Connected reports whether the last send succeeded.
func (s *Sender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && !s.closed
}

// Reconnect re-dials the control endpoint, retrying up to the
// configured attempt count with a fixed delay between tries.
func (s *Sender) Reconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	target := s.targetAddr
	s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		conn, err := net.DialUDP("udp", nil, target)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				conn.Close()
				return ErrSenderClosed
			}
			if s.conn != nil {
				s.conn.Close()
			}
			s.conn = conn
			s.connected = true
			s.mu.Unlock()
			log.Infof("Sender: reconnected to %s (attempt %d)", target.String(), attempt)
			return nil
		}
		lastErr = err
		log.Debugf("Sender: reconnect attempt %d/%d failed: %v", attempt, s.attempts, err)
		if attempt < s.attempts {
			time.Sleep(s.delay)
		}
	}
	return fmt.Errorf("failed to reconnect to '%s' after %d attempts: %w", target.String(), s.attempts, lastErr)
}

// Close closes the underlying UDP connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}

	s.closed = true
	s.connected = false
	if s.conn != nil {
		log.Debugf("Sender: closing connection to %s", s.targetAddr.String())
		err := s.conn.Close()
		s.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close sender connection: %w", err)
		}
	}
	return nil
}

// MessageSender is the outbound capability the rest of the repo
// depends on, letting tests substitute a mock.
type MessageSender interface {
	Send(Message) error
	Connected() bool
}

var _ MessageSender = (*Sender)(nil)
var _ interface{ Close() error } = (*Sender)(nil)
