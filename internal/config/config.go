// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"trackprobe/internal/log"
	"trackprobe/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration, loaded from YAML with
// environment overrides on top. CLI flags override both (see cmd).
type Config struct {
	Debug    bool   `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel string `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command  string `yaml:"command,omitempty"` // One-off command instead of running the probe (e.g. "list").
	TUIMode  bool   `yaml:"-"`                 // Terminal UI monitor, set from the CLI only.

	Audio     AudioConfig     `yaml:"audio"`     // Capture device and hot-path settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Control   ControlConfig   `yaml:"control"`   // Control application endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry"` // Telemetry reporting settings.
	Recording RecordingConfig `yaml:"recording"` // WAV recording settings.
	WebSocket WebSocketConfig `yaml:"websocket"` // Browser meter fan-out.
}

// AudioConfig holds capture device and callback settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g. 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback (latency vs. overhead).
	InputChannels   int     `yaml:"input_channels"`    // Channels to capture (1=mono, 2=stereo).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from PortAudio.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Mute blocks below the gate threshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Peak amplitude gate threshold [0,1].
}

// AnalysisConfig holds spectral pipeline settings.
type AnalysisConfig struct {
	FFTOrder   int    `yaml:"fft_order"`   // Window size is 1<<order samples.
	UpdateRate int    `yaml:"update_rate"` // Analysis ticks per second.
	Window     string `yaml:"window"`      // Window function name (e.g. "Hann", "Hamming").
	AWeighting bool   `yaml:"a_weighting"` // Apply A-weighting before band energy.
	AutoStart  bool   `yaml:"auto_start"`  // Start the analysis ticker with the engine.
}

// ControlConfig holds the control application endpoint.
type ControlConfig struct {
	Host string `yaml:"host"` // Control application host.
	Port int    `yaml:"port"` // Control application UDP port.
}

// TelemetryConfig holds telemetry reporting settings.
type TelemetryConfig struct {
	RateHz int `yaml:"rate_hz"` // Telemetry sends per second.
}

// RecordingConfig holds WAV recording settings.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the processed input stream.
	OutputDir string `yaml:"output_dir"` // Directory for recorded files.
	Format    string `yaml:"format"`     // File format ("wav" only for now).
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth (16, 24 or 32).
}

// WebSocketConfig holds the browser meter fan-out settings.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve analysis frames over WebSocket.
	Addr    string `yaml:"addr"`    // Listen address (e.g. ":8090").
}

// NewConfig returns a Config populated with built-in defaults. This is
// the base every load starts from.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      DefaultLowLatency,
			GateEnabled:     false,
			GateThreshold:   0.01,
		},
		Analysis: AnalysisConfig{
			FFTOrder:   DefaultFFTOrder,
			UpdateRate: DefaultAnalysisRate,
			Window:     "Hann",
			AWeighting: false,
			AutoStart:  true,
		},
		Control: ControlConfig{
			Host: DefaultControlHost,
			Port: DefaultControlPort,
		},
		Telemetry: TelemetryConfig{
			RateHz: DefaultTelemetryRate,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			Format:    "wav",
			BitDepth:  32,
		},
		WebSocket: WebSocketConfig{
			Enabled: false,
			Addr:    ":8090",
		},
	}
}

// LoadConfig loads configuration from a YAML file at path. An empty
// path searches default locations; if none exists the built-in
// defaults are used. Environment overrides are applied after the file,
// and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"trackprobe.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides apply AFTER the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FFTSize returns the analysis window size in samples.
func (c *Config) FFTSize() int {
	return 1 << c.Analysis.FFTOrder
}

// Validate checks the configuration for values the engine cannot run
// with. Clampable runtime values (analysis rate) are clamped at the
// point of use instead.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) {
		return fmt.Errorf("audio.frames_per_buffer %d is not a power of 2 (nearest is %d)",
			c.Audio.FramesPerBuffer, bitint.NextPowerOfTwo(c.Audio.FramesPerBuffer))
	}
	if c.Audio.InputChannels < 1 {
		return fmt.Errorf("audio.input_channels %d must be >= 1", c.Audio.InputChannels)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d below %d", c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		return fmt.Errorf("audio.gate_threshold %.3f outside [0, 1]", c.Audio.GateThreshold)
	}
	if c.Analysis.FFTOrder < MinFFTOrder || c.Analysis.FFTOrder > MaxFFTOrder {
		return fmt.Errorf("analysis.fft_order %d outside [%d, %d]", c.Analysis.FFTOrder, MinFFTOrder, MaxFFTOrder)
	}
	if c.Analysis.UpdateRate < MinAnalysisRate || c.Analysis.UpdateRate > MaxAnalysisRate {
		return fmt.Errorf("analysis.update_rate %d outside [%d, %d]", c.Analysis.UpdateRate, MinAnalysisRate, MaxAnalysisRate)
	}
	if c.Control.Port <= 0 || c.Control.Port > 65535 {
		return fmt.Errorf("control.port %d outside (0, 65535]", c.Control.Port)
	}
	if c.Telemetry.RateHz <= 0 || c.Telemetry.RateHz > 60 {
		return fmt.Errorf("telemetry.rate_hz %d outside (0, 60]", c.Telemetry.RateHz)
	}
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth)
		}
		if c.Recording.Format != "wav" {
			return fmt.Errorf("recording.format %q unsupported (wav only)", c.Recording.Format)
		}
	}
	if c.WebSocket.Enabled && c.WebSocket.Addr == "" {
		return fmt.Errorf("websocket.addr must be set when websocket is enabled")
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q not recognized", c.LogLevel)
	}
	return nil
}

// applyEnvOverrides applies TRACKPROBE_* environment variables over the
// loaded configuration. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("TRACKPROBE_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			log.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("TRACKPROBE_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("TRACKPROBE_CONTROL_HOST"); ok {
		c.Control.Host = val
		log.Debugf("configuration: overriding control.host from env: %s", val)
	}
	if val, ok := os.LookupEnv("TRACKPROBE_CONTROL_PORT"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Control.Port = iVal
			log.Debugf("configuration: overriding control.port from env: %d", iVal)
		}
	}
	if val, ok := os.LookupEnv("TRACKPROBE_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = iVal
			log.Debugf("configuration: overriding audio.input_device from env: %d", iVal)
		}
	}
	if val, ok := os.LookupEnv("TRACKPROBE_WS_ADDR"); ok {
		c.WebSocket.Addr = val
		c.WebSocket.Enabled = true
		log.Debugf("configuration: overriding websocket.addr from env: %s", val)
	}
}
