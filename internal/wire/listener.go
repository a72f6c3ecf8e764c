package wire

import (
	"strings"

	"trackprobe/internal/log"
)

// Listener is the inbound control surface. The receiver routes each
// decoded message to exactly one handler after validating its
// argument shape; malformed messages are logged and dropped before
// they reach the Listener.
type Listener interface {
	// HandleTrackAssignment delivers the track id this instance now
	// represents.
	HandleTrackAssignment(trackID string)

	// HandlePortAssignment delivers a telemetry port assignment.
	// status is "assigned" on success; anything else is a refusal.
	HandlePortAssignment(instanceID string, port int32, status string)

	// HandleParameterChange delivers a parameter update in plain
	// native units.
	HandleParameterChange(name string, value float32)

	// HandleRMSQuery asks for an immediate RMS reading. The queryID
	// is echoed back in the response so the control application can
	// correlate it.
	HandleRMSQuery(queryID string)

	// HandleToneControl starts (true) or stops (false) the
	// calibration tone. freq and ampDB apply only on start.
	HandleToneControl(start bool, freq, ampDB float32)

	// HandleChatResponse delivers relayed chat text.
	HandleChatResponse(text string)
}

// Route validates a message's argument shape and dispatches it to the
// matching Listener handler. Unknown addresses and malformed argument
// lists are dropped with a log line; routing never panics on foreign
// input.
func Route(msg Message, l Listener) {
	switch msg.Addr {
	case AddrTrackAssignment:
		// Assignments carry routing metadata in varying positions;
		// the track id is the first string with the TR prefix.
		for i := range msg.Args {
			if s, ok := msg.String(i); ok && strings.HasPrefix(s, TrackIDPrefix) {
				l.HandleTrackAssignment(s)
				return
			}
		}
		log.Warnf("Route: %s without a %s-prefixed id, dropping", msg.Addr, TrackIDPrefix)

	case AddrPortAssignment:
		instanceID, ok1 := msg.String(0)
		port, ok2 := msg.Int(1)
		status, ok3 := msg.String(2)
		if !ok1 || !ok2 || !ok3 {
			log.Warnf("Route: %s with unexpected shape (%d args), dropping", msg.Addr, len(msg.Args))
			return
		}
		l.HandlePortAssignment(instanceID, port, status)

	case AddrSetParameter:
		name, ok1 := msg.String(0)
		value, ok2 := msg.Float(1)
		if !ok1 || !ok2 {
			log.Warnf("Route: %s with unexpected shape (%d args), dropping", msg.Addr, len(msg.Args))
			return
		}
		l.HandleParameterChange(name, value)

	case AddrQueryRMS:
		queryID, ok := msg.String(0)
		if !ok {
			log.Warnf("Route: %s without a query id, dropping", msg.Addr)
			return
		}
		l.HandleRMSQuery(queryID)

	case AddrStartTone:
		freq, ok1 := msg.Float(0)
		ampDB, ok2 := msg.Float(1)
		if !ok1 || !ok2 {
			log.Warnf("Route: %s with unexpected shape (%d args), dropping", msg.Addr, len(msg.Args))
			return
		}
		l.HandleToneControl(true, freq, ampDB)

	case AddrStopTone:
		l.HandleToneControl(false, 0, 0)

	case AddrChatResponse:
		for i := range msg.Args {
			if s, ok := msg.String(i); ok {
				l.HandleChatResponse(s)
				return
			}
		}
		log.Warnf("Route: %s without text, dropping", msg.Addr)

	default:
		log.Debugf("Route: ignoring unknown address %s", msg.Addr)
	}
}
