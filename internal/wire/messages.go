package wire

// Builders for every outgoing message shape. Argument order is part of
// the protocol; the control application decodes positionally.

// TelemetryMessage carries the per-track analysis snapshot: track id,
// RMS, then the four band energies in ascending frequency order.
func TelemetryMessage(trackID string, rms float32, bands [4]float32) Message {
	return NewMessage(AddrTelemetry,
		trackID, rms, bands[0], bands[1], bands[2], bands[3])
}

// RMSMessage is the legacy level-only message, still consumed by older
// control builds alongside the full telemetry.
func RMSMessage(trackID string, rms float32) Message {
	return NewMessage(AddrRMS, trackID, rms)
}

// RequestPortMessage asks the control application for a dedicated
// telemetry port. preferredPort of -1 lets the control side pick;
// replyPort is where the assignment should be sent.
func RequestPortMessage(instanceID string, preferredPort, replyPort int32) Message {
	return NewMessage(AddrRequestPort, instanceID, preferredPort, replyPort)
}

// PortConfirmedMessage reports the outcome of binding an assigned
// port; status is "bound" or "failed".
func PortConfirmedMessage(instanceID string, port int32, status string) Message {
	return NewMessage(AddrPortConfirmed, instanceID, port, status)
}

// UUIDConfirmedMessage acknowledges a track assignment.
func UUIDConfirmedMessage(instanceID, trackID string) Message {
	return NewMessage(AddrUUIDConfirmed, instanceID, trackID, StatusConfirmed)
}

// RMSResponseMessage answers an explicit RMS query, echoing the query
// id so the control application can correlate the reading.
func RMSResponseMessage(queryID, instanceID string, rms float32) Message {
	return NewMessage(AddrRMSResponse, queryID, instanceID, rms)
}

// ToneStartedMessage acknowledges calibration tone start with the
// frequency actually in effect.
func ToneStartedMessage(instanceID string, freq float32) Message {
	return NewMessage(AddrToneStarted, instanceID, freq)
}

// ToneStoppedMessage acknowledges calibration tone stop.
func ToneStoppedMessage(instanceID string) Message {
	return NewMessage(AddrToneStopped, instanceID)
}

// ChatRequestMessage relays a chat prompt to the control application.
func ChatRequestMessage(instanceID int32, text string) Message {
	return NewMessage(AddrChatRequest, instanceID, text)
}
