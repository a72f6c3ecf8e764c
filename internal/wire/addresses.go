package wire

// Address patterns shared with the control application. Outgoing
// messages originate here; incoming ones are routed by Route.
const (
	// Outgoing
	AddrTelemetry     = "/trackprobe/telemetry"
	AddrRMS           = "/trackprobe/rms"
	AddrRequestPort   = "/trackprobe/request_port"
	AddrPortConfirmed = "/trackprobe/port_confirmed"
	AddrUUIDConfirmed = "/trackprobe/uuid_confirmed"
	AddrRMSResponse   = "/trackprobe/rms_response"
	AddrToneStarted   = "/trackprobe/tone_started"
	AddrToneStopped   = "/trackprobe/tone_stopped"
	AddrChatRequest   = "/trackprobe/chat/request"

	// Incoming
	AddrPortAssignment  = "/trackprobe/port_assignment"
	AddrTrackAssignment = "/trackprobe/track_uuid_assignment"
	AddrSetParameter    = "/trackprobe/set_parameter"
	AddrQueryRMS        = "/trackprobe/query_rms"
	AddrStartTone       = "/trackprobe/start_tone"
	AddrStopTone        = "/trackprobe/stop_tone"
	AddrChatResponse    = "/trackprobe/chat/response"
)

// TrackIDPrefix marks track identifiers in assignment messages. The
// control application pads assignments with routing metadata, so the
// track id is found by prefix rather than position.
const TrackIDPrefix = "TR"

// Status vocabulary for the negotiation and assignment messages.
const (
	StatusAssigned  = "assigned"  // incoming port_assignment grant
	StatusBound     = "bound"     // outgoing port_confirmed success
	StatusFailed    = "failed"    // outgoing port_confirmed failure
	StatusConfirmed = "confirmed" // outgoing uuid_confirmed ack
)
