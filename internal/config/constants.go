package config

import "time"

// Protocol constants shared with the control application. These must
// match the control side exactly and are therefore fixed here rather
// than configurable.
const (
	// Control channel endpoint (where request_port and telemetry go
	// before a dedicated port is negotiated)
	DefaultControlHost = "127.0.0.1"
	DefaultControlPort = 8999

	// Range the control application assigns telemetry ports from
	NegotiatedPortMin  = 50000
	NegotiatedPortMax  = 60000
	NegotiatedPortStep = 100

	// Port negotiation timing
	PortRequestTimeout    = 2000 * time.Millisecond
	PortRequestMaxRetries = 5
	ReconnectDelay        = 100 * time.Millisecond
	ReconnectMaxAttempts  = 3
)

// Defaults and limits for the audio engine and analysis pipeline.
const (
	// Audio device defaults
	DefaultChannels        = 2           // Stereo capture, mono-mixed for analysis
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultLowLatency      = false       // Standard latency mode

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)

	// Spectral analysis
	DefaultFFTOrder      = 10 // 1024-sample window
	MinFFTOrder          = 5
	MaxFFTOrder          = 15
	DefaultAnalysisRate  = 10 // Analysis ticks per second
	MinAnalysisRate      = 1
	MaxAnalysisRate      = 100
	DefaultTelemetryRate = 24 // Telemetry sends per second

	// Calibration tone defaults
	DefaultToneFrequency   = 440.0
	DefaultToneAmplitudeDB = -20.0

	// RMS measurement
	RMSMinimum = 0.0001 // Reported for an empty/silent block
	RMSEpsilon = 1e-10  // Keeps sqrt away from denormals
)
