// SPDX-License-Identifier: MIT
package audio

import "math"

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the noise gate is active.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	e.gateThreshold.Store(math.Float32bits(float32(threshold)))
}

// GetGateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) GetGateThreshold() float64 {
	return float64(e.gateLevel())
}

// gateLevel returns the threshold as the float32 the callback compares
// block peaks against.
func (e *Engine) gateLevel() float32 {
	return math.Float32frombits(e.gateThreshold.Load())
}
