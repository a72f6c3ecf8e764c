package wire

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"trackprobe/internal/log"
)

// Receiver errors.
var (
	ErrReceiverClosed     = errors.New("receiver is closed")
	ErrReceiverNotStarted = errors.New("receiver not started")
)

// Receiver listens for control messages on a localhost UDP port and
// dispatches them to a Listener. It starts on an OS-assigned ephemeral
// port (the reply port for request_port) and is rebound onto the
// negotiated port once one is assigned.
//
// Each bound socket gets its own read goroutine; Rebind swaps the
// socket and closes the old one, which ends the superseded goroutine
// on its next read. That keeps Rebind safe to call from inside a
// dispatch, which is exactly where port assignments arrive.
type Receiver struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	listener Listener
	wg       sync.WaitGroup
	running  bool
	closed   bool
}

// NewReceiver creates a receiver that will dispatch to l.
func NewReceiver(l Listener) *Receiver {
	return &Receiver{listener: l}
}

// Start binds the receiver to localhost:port and begins reading. Port
// 0 requests an OS-assigned ephemeral port.
func (r *Receiver) Start(port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReceiverClosed
	}
	if r.running {
		return fmt.Errorf("receiver already running on port %d", r.portLocked())
	}

	conn, err := listenLocal(port)
	if err != nil {
		return err
	}
	r.conn = conn
	r.running = true

	r.wg.Add(1)
	go r.readLoop(conn)

	log.Infof("Receiver: listening on %s", conn.LocalAddr().String())
	return nil
}

// Rebind moves the receiver onto a new port. The old socket closes
// after the new one is live, so no assignment window is lost to a
// failed bind.
func (r *Receiver) Rebind(port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrReceiverClosed
	}
	if !r.running {
		return ErrReceiverNotStarted
	}

	conn, err := listenLocal(port)
	if err != nil {
		return err
	}

	old := r.conn
	r.conn = conn
	if old != nil {
		old.Close()
	}

	r.wg.Add(1)
	go r.readLoop(conn)

	log.Infof("Receiver: rebound to %s", conn.LocalAddr().String())
	return nil
}

// Port returns the currently bound UDP port, or 0 when unbound.
func (r *Receiver) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.portLocked()
}

func (r *Receiver) portLocked() int {
	if r.conn == nil {
		return 0
	}
	addr, ok := r.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Stop closes the socket and waits for the read goroutines to drain.
// Safe to call more than once.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.running = false
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
	log.Debugf("Receiver: stopped")
	return nil
}

// Close implements io.Closer.
func (r *Receiver) Close() error {
	return r.Stop()
}

// readLoop reads datagrams from one socket until it errors, which
// happens when the socket is closed by Stop or superseded by Rebind.
func (r *Receiver) readLoop(conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			stopping := r.closed || r.conn != conn
			r.mu.Unlock()
			if !stopping {
				log.Warnf("Receiver: read error: %v", err)
			}
			return
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			log.Warnf("Receiver: dropping malformed datagram from %s: %v", remote.String(), err)
			continue
		}

		Route(msg, r.listener)
	}
}

// listenLocal binds a UDP socket on the loopback interface. The
// control protocol is local-only.
func listenLocal(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP port %d: %w", port, err)
	}
	return conn, nil
}

var _ interface{ Close() error } = (*Receiver)(nil)
