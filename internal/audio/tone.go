// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"

	"trackprobe/internal/config"
)

// ToneGenerator produces a calibration sine tone mixed additively into
// the input signal. Frequency and amplitude are atomics so any thread
// can retune it while the audio callback renders; the phase accumulator
// is touched only by the callback.
type ToneGenerator struct {
	freqBits atomic.Uint64 // float64 bits, Hz
	ampBits  atomic.Uint64 // float64 bits, linear gain
	enabled  atomic.Bool

	phase      float64 // callback-owned
	sampleRate float64
}

// NewToneGenerator returns a generator at the default calibration
// frequency and amplitude, disabled.
func NewToneGenerator() *ToneGenerator {
	t := &ToneGenerator{}
	t.freqBits.Store(math.Float64bits(config.DefaultToneFrequency))
	t.SetAmplitudeDB(config.DefaultToneAmplitudeDB)
	return t
}

// Prepare stores the sample rate used to advance the oscillator phase.
// Must be called before Render.
func (t *ToneGenerator) Prepare(sampleRate float64) {
	t.sampleRate = sampleRate
	t.phase = 0
}

// Start resets the phase for a clean attack and enables the tone.
func (t *ToneGenerator) Start() {
	t.phase = 0
	t.enabled.Store(true)
}

// Stop disables the tone. The phase is left where it was.
func (t *ToneGenerator) Stop() {
	t.enabled.Store(false)
}

func (t *ToneGenerator) Enabled() bool { return t.enabled.Load() }

// SetFrequency retunes the oscillator. Non-positive values are ignored.
func (t *ToneGenerator) SetFrequency(hz float64) {
	if hz <= 0 {
		return
	}
	t.freqBits.Store(math.Float64bits(hz))
}

// Frequency returns the tone frequency in Hz.
func (t *ToneGenerator) Frequency() float64 {
	return math.Float64frombits(t.freqBits.Load())
}

// SetAmplitudeDB sets the tone level. The value is converted to linear
// gain once here so the callback never touches math.Pow.
func (t *ToneGenerator) SetAmplitudeDB(db float64) {
	t.ampBits.Store(math.Float64bits(math.Pow(10, db/20)))
}

// AmplitudeDB returns the tone level in dB.
func (t *ToneGenerator) AmplitudeDB() float64 {
	return 20 * math.Log10(t.Amplitude())
}

// Amplitude returns the tone level as linear gain.
func (t *ToneGenerator) Amplitude() float64 {
	return math.Float64frombits(t.ampBits.Load())
}

// Render mixes the tone into an interleaved buffer, same sample on
// every channel. No-op while disabled or unprepared. Audio callback
// only.
func (t *ToneGenerator) Render(dst []float32, channels int) {
	if !t.enabled.Load() || t.sampleRate <= 0 || channels <= 0 {
		return
	}

	amp := t.Amplitude()
	step := 2 * math.Pi * t.Frequency() / t.sampleRate

	frames := len(dst) / channels
	for i := 0; i < frames; i++ {
		sample := float32(amp * math.Sin(t.phase))
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			dst[base+ch] += sample
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}
