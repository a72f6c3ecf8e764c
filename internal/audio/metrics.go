// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"

	"trackprobe/internal/config"
)

// peakDecay scales the held peak each block so the meter falls back
// smoothly instead of snapping to the new block maximum.
const peakDecay = 0.95

// Metrics tracks the current RMS and peak level of the processed
// signal. Update runs in the audio callback; readers load atomically
// from any goroutine.
type Metrics struct {
	rmsBits  atomic.Uint64 // float64 bits
	peakBits atomic.Uint64 // float64 bits
}

// NewMetrics returns metrics reporting the silence floor until the
// first block arrives.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.rmsBits.Store(math.Float64bits(config.RMSMinimum))
	return m
}

// Update computes the block's RMS and refreshes the held peak.
// Performance Critical (Hot Path): no allocations, unrolled
// accumulation.
func (m *Metrics) Update(buffer []float32) {
	if len(buffer) == 0 {
		m.rmsBits.Store(math.Float64bits(config.RMSMinimum))
		return
	}

	// Four accumulators keep the multiply-adds independent.
	var sum0, sum1, sum2, sum3 float64
	i := 0
	for ; i+3 < len(buffer); i += 4 {
		s0 := float64(buffer[i])
		s1 := float64(buffer[i+1])
		s2 := float64(buffer[i+2])
		s3 := float64(buffer[i+3])
		sum0 += s0 * s0
		sum1 += s1 * s1
		sum2 += s2 * s2
		sum3 += s3 * s3
	}
	for ; i < len(buffer); i++ {
		s := float64(buffer[i])
		sum0 += s * s
	}

	meanSquare := (sum0 + sum1 + sum2 + sum3) / float64(len(buffer))
	rms := math.Sqrt(meanSquare + config.RMSEpsilon)
	m.rmsBits.Store(math.Float64bits(rms))

	var peakBits32 uint32
	for i := range buffer {
		// Sign-bit clear for the absolute value.
		bits := math.Float32bits(buffer[i]) &^ (1 << 31)
		if bits > peakBits32 {
			peakBits32 = bits
		}
	}

	held := math.Float64frombits(m.peakBits.Load()) * peakDecay
	if p := float64(math.Float32frombits(peakBits32)); p > held {
		held = p
	}
	m.peakBits.Store(math.Float64bits(held))
}

// RMS returns the most recent block RMS.
func (m *Metrics) RMS() float32 {
	return float32(math.Float64frombits(m.rmsBits.Load()))
}

// Peak returns the decayed peak level.
func (m *Metrics) Peak() float32 {
	return float32(math.Float64frombits(m.peakBits.Load()))
}

// Reset returns both meters to the silence floor.
func (m *Metrics) Reset() {
	m.rmsBits.Store(math.Float64bits(config.RMSMinimum))
	m.peakBits.Store(0)
}
