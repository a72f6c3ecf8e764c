// SPDX-License-Identifier: MIT

// Package telemetry streams per-track analysis results to the control
// application at a fixed rate.
package telemetry

import (
	"time"

	"trackprobe/internal/analysis"
)

// Sample is one telemetry snapshot: the track's level metrics plus the
// four band energies in dB.
type Sample struct {
	TrackID    string
	InstanceID string
	RMS        float32
	Peak       float32
	Bands      [analysis.NumBands]float32
	Timestamp  time.Time
}

// NewSample returns a sample with the band energies at the silence
// floor.
func NewSample() Sample {
	var s Sample
	for i := range s.Bands {
		s.Bands[i] = analysis.EnergyFloorDB
	}
	return s
}

// Valid reports whether the sample is complete enough to publish: both
// identifiers assigned and non-negative level metrics. Samples from an
// instance the control application has not adopted yet fail this check
// and are skipped rather than sent half-labeled.
func (s Sample) Valid() bool {
	return s.TrackID != "" && s.InstanceID != "" && s.RMS >= 0 && s.Peak >= 0
}

// Source supplies the reporter with fresh samples, typically the probe
// assembling metrics and band energies per tick.
type Source interface {
	TelemetrySample() Sample
}
