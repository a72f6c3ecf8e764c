// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Analysis.FFTOrder != DefaultFFTOrder {
		t.Errorf("default fft_order = %d, expected %d", cfg.Analysis.FFTOrder, DefaultFFTOrder)
	}
	if cfg.Control.Port != DefaultControlPort {
		t.Errorf("default control.port = %d, expected %d", cfg.Control.Port, DefaultControlPort)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
analysis:
  fft_order: 11
  update_rate: 20
control:
  host: 10.0.0.5
  port: 9100
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Analysis.FFTOrder != 11 {
		t.Errorf("fft_order = %d, expected 11", cfg.Analysis.FFTOrder)
	}
	if cfg.Analysis.UpdateRate != 20 {
		t.Errorf("update_rate = %d, expected 20", cfg.Analysis.UpdateRate)
	}
	if cfg.Control.Host != "10.0.0.5" || cfg.Control.Port != 9100 {
		t.Errorf("control = %s:%d, expected 10.0.0.5:9100", cfg.Control.Host, cfg.Control.Port)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample_rate = %.0f, expected default %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.FFTSize() != 2048 {
		t.Errorf("FFTSize() = %d, expected 2048", cfg.FFTSize())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }, "sample_rate"},
		{"frames not power of 2", func(c *Config) { c.Audio.FramesPerBuffer = 500 }, "power of 2"},
		{"frames too large", func(c *Config) { c.Audio.FramesPerBuffer = 16384 }, "frames_per_buffer"},
		{"zero channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"fft order too small", func(c *Config) { c.Analysis.FFTOrder = 4 }, "fft_order"},
		{"fft order too large", func(c *Config) { c.Analysis.FFTOrder = 16 }, "fft_order"},
		{"update rate zero", func(c *Config) { c.Analysis.UpdateRate = 0 }, "update_rate"},
		{"update rate too high", func(c *Config) { c.Analysis.UpdateRate = 101 }, "update_rate"},
		{"control port zero", func(c *Config) { c.Control.Port = 0 }, "control.port"},
		{"telemetry rate zero", func(c *Config) { c.Telemetry.RateHz = 0 }, "rate_hz"},
		{"bad bit depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 12 }, "bit_depth"},
		{"bad gate threshold", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "gate_threshold"},
		{"websocket without addr", func(c *Config) { c.WebSocket.Enabled = true; c.WebSocket.Addr = "" }, "websocket.addr"},
		{"bad log level", func(c *Config) { c.LogLevel = "shout" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRACKPROBE_CONTROL_PORT", "9200")
	t.Setenv("TRACKPROBE_DEBUG", "true")
	t.Setenv("TRACKPROBE_INPUT_DEVICE", "3")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	if cfg.Control.Port != 9200 {
		t.Errorf("control.port = %d, expected 9200", cfg.Control.Port)
	}
	if !cfg.Debug {
		t.Error("expected debug override to apply")
	}
	if cfg.Audio.InputDevice != 3 {
		t.Errorf("input_device = %d, expected 3", cfg.Audio.InputDevice)
	}
}

func TestEnvOverrides_BadValuesIgnored(t *testing.T) {
	t.Setenv("TRACKPROBE_CONTROL_PORT", "not-a-port")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	if cfg.Control.Port != DefaultControlPort {
		t.Errorf("control.port = %d, expected untouched default %d", cfg.Control.Port, DefaultControlPort)
	}
}

func TestFFTSize(t *testing.T) {
	for order := MinFFTOrder; order <= MaxFFTOrder; order++ {
		t.Run(fmt.Sprintf("order%d", order), func(t *testing.T) {
			cfg := NewConfig()
			cfg.Analysis.FFTOrder = order
			if got := cfg.FFTSize(); got != 1<<order {
				t.Errorf("FFTSize() = %d, expected %d", got, 1<<order)
			}
		})
	}
}
