// SPDX-License-Identifier: MIT
package analysis

// Defines the standard interfaces for components that consume analysis results.

// SpectrumProvider is implemented by components that expose a magnitude
// spectrum. It decouples consumers (telemetry, transports, UI meters)
// from the concrete FFT implementation.
type SpectrumProvider interface {
	SpectrumInto(dst []float64) error // SpectrumInto copies the latest spectrum; dst must hold NumBins values.
	NumBins() int                     // NumBins returns the number of spectrum bins.
	BinWidth() float64                // BinWidth returns the frequency resolution in Hz.
}

// BandEnergyProvider is implemented by components that expose folded
// band energies alongside the raw spectrum.
type BandEnergyProvider interface {
	BandEnergiesDB() [NumBands]float64 // BandEnergiesDB returns per-band energy in dB, ascending frequency order.
	Bands() []Band                     // Bands returns a named snapshot of the current band values.
}

// SampleSink is implemented by components fed from the audio callback.
// Implementations must be efficient as this is called from within the
// real-time hotpath.
type SampleSink interface {
	Feed(block []float32, channels int)
}
