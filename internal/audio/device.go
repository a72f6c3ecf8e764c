package audio

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// GetDevices returns all available audio devices, managing the
// PortAudio lifecycle itself. Callers that already initialized
// PortAudio should use HostDevices instead.
func GetDevices() ([]Device, error) {
	err := Initialize()
	if err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}
