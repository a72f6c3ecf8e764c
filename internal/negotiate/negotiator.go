// SPDX-License-Identifier: MIT

// Package negotiate implements the port handshake with the control
// application. Each probe instance asks for a dedicated telemetry
// port, binds its receiver onto the granted port and confirms the
// result, retrying with a timeout until the grant sticks or the retry
// budget runs out.
package negotiate

import (
	"fmt"
	"net"
	"sync"
	"time"

	"trackprobe/internal/config"
	"trackprobe/internal/log"
	"trackprobe/internal/wire"
)

// State tracks where an instance sits in the port handshake.
type State int32

const (
	StateUnassigned State = iota // no port requested yet
	StateRequesting              // request sent, awaiting assignment
	StateAssigned                // assignment received, bind in progress
	StateBound                   // port bound and verified
	StateFailed                  // terminal until Reset
)

func (s State) String() string {
	switch s {
	case StateUnassigned:
		return "UNASSIGNED"
	case StateRequesting:
		return "REQUESTING"
	case StateAssigned:
		return "ASSIGNED"
	case StateBound:
		return "BOUND"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Binder is the surface the negotiator needs from the wire receiver:
// rebinding onto a granted port and reporting the current reply port.
type Binder interface {
	Rebind(port int) error
	Port() int
}

// Negotiator drives the handshake state machine. All transitions
// happen under one mutex; the probe's housekeeping ticker calls
// CheckAndRetry and the wire dispatch calls HandleAssignment.
type Negotiator struct {
	mu          sync.Mutex
	state       State
	port        int // granted port, -1 until assigned
	retryCount  int
	lastRequest time.Time

	instanceID string
	sender     wire.MessageSender
	binder     Binder

	timeout    time.Duration
	maxRetries int

	now    func() time.Time     // swapped out by tests
	verify func(port int) error // port exclusivity probe
}

// NewNegotiator creates a negotiator for one probe instance.
func NewNegotiator(instanceID string, sender wire.MessageSender, binder Binder) *Negotiator {
	return &Negotiator{
		state:      StateUnassigned,
		port:       -1,
		instanceID: instanceID,
		sender:     sender,
		binder:     binder,
		timeout:    config.PortRequestTimeout,
		maxRetries: config.PortRequestMaxRetries,
		now:        time.Now,
		verify:     probePortExclusive,
	}
}

// RequestPort sends one port request to the control application. It
// reports whether a request went out (or the instance is already
// bound). Requests are rate-limited by the handshake timeout and give
// up for good once the retry budget is spent.
func (n *Negotiator) RequestPort() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requestPortLocked()
}

func (n *Negotiator) requestPortLocked() bool {
	switch n.state {
	case StateBound:
		return true
	case StateFailed:
		return false
	case StateRequesting:
		if n.now().Sub(n.lastRequest) < n.timeout {
			return false
		}
	}

	if n.retryCount >= n.maxRetries {
		log.Errorf("Negotiate: no port assignment after %d requests, giving up.", n.retryCount)
		n.state = StateFailed
		return false
	}

	msg := wire.RequestPortMessage(n.instanceID, -1, int32(n.binder.Port()))
	if err := n.sender.Send(msg); err != nil {
		n.retryCount++
		log.Warnf("Negotiate: port request failed to send (attempt %d/%d): %v",
			n.retryCount, n.maxRetries, err)
		return false
	}

	n.state = StateRequesting
	n.lastRequest = n.now()
	n.retryCount++
	log.Infof("Negotiate: requested port (attempt %d/%d, reply port %d)",
		n.retryCount, n.maxRetries, n.binder.Port())
	return true
}

// HandleAssignment processes a port_assignment from the control
// application. Grants for other instances are ignored. A valid grant
// moves the machine to Assigned and immediately attempts the bind;
// anything else fails the handshake.
func (n *Negotiator) HandleAssignment(instanceID string, port int, status string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if instanceID != n.instanceID {
		log.Debugf("Negotiate: ignoring assignment for instance %s", instanceID)
		return false
	}

	if status != wire.StatusAssigned || port <= 0 {
		log.Errorf("Negotiate: assignment rejected (status %q, port %d)", status, port)
		n.state = StateFailed
		return false
	}

	if port < config.NegotiatedPortMin || port > config.NegotiatedPortMax {
		log.Warnf("Negotiate: port %d outside the expected %d-%d range, binding anyway",
			port, config.NegotiatedPortMin, config.NegotiatedPortMax)
	}

	n.state = StateAssigned
	n.port = port
	log.Infof("Negotiate: assigned port %d, binding", port)
	return n.bindLocked(port)
}

// bindLocked rebinds the receiver onto the granted port and verifies
// the bind is exclusive. Failure confirms "failed" to the control
// application, resets the machine and starts a fresh request cycle.
func (n *Negotiator) bindLocked(port int) bool {
	err := n.binder.Rebind(port)
	if err == nil {
		if verr := n.verify(port); verr != nil {
			log.Errorf("Negotiate: port %d bind not exclusive: %v", port, verr)
			// Release the suspect port before starting over.
			if rerr := n.binder.Rebind(0); rerr != nil {
				log.Warnf("Negotiate: releasing port %d failed: %v", port, rerr)
			}
			err = verr
		}
	}

	if err != nil {
		log.Errorf("Negotiate: binding port %d failed: %v", port, err)
		if serr := n.sender.Send(wire.PortConfirmedMessage(n.instanceID, int32(port), wire.StatusFailed)); serr != nil {
			log.Warnf("Negotiate: port_confirmed(failed) not sent: %v", serr)
		}
		n.resetLocked()
		n.requestPortLocked()
		return false
	}

	n.state = StateBound
	n.retryCount = 0
	log.Infof("Negotiate: bound and verified port %d", port)
	if serr := n.sender.Send(wire.PortConfirmedMessage(n.instanceID, int32(port), wire.StatusBound)); serr != nil {
		log.Warnf("Negotiate: port_confirmed(bound) not sent: %v", serr)
	}
	return true
}

// CheckAndRetry is the housekeeping hook: it nudges the handshake
// forward when nothing has been requested yet or the last request
// timed out. Failed stays failed until Reset.
func (n *Negotiator) CheckAndRetry() {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateUnassigned:
		n.requestPortLocked()
	case StateRequesting:
		if n.now().Sub(n.lastRequest) >= n.timeout {
			log.Warnf("Negotiate: port request timed out after %s", n.timeout)
			n.requestPortLocked()
		}
	}
}

// Reset returns the machine to Unassigned with a fresh retry budget.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked()
}

func (n *Negotiator) resetLocked() {
	n.state = StateUnassigned
	n.port = -1
	n.retryCount = 0
	n.lastRequest = time.Time{}
	log.Debugf("Negotiate: reset to %s", n.state)
}

// State returns the current handshake state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Port returns the granted port, or -1 before an assignment.
func (n *Negotiator) Port() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.port
}

// Retries returns how many requests have been sent this cycle.
func (n *Negotiator) Retries() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.retryCount
}

// probePortExclusive confirms we hold the port exclusively: a second
// UDP bind on the same address must be refused while ours is open.
func probePortExclusive(port int) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{
		IP:   net.ParseIP(config.DefaultControlHost),
		Port: port,
	})
	if err != nil {
		return nil
	}
	conn.Close()
	return fmt.Errorf("port %d accepted a second binding", port)
}
