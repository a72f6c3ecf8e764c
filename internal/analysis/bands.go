// SPDX-License-Identifier: MIT
package analysis

import "math"

// NumBands is the number of reported frequency bands.
const NumBands = 4

// EnergyFloorDB is the lowest reported band level. Silent or
// out-of-range bands sit exactly here.
const EnergyFloorDB = -100.0

// energyEpsilon keeps log10 defined for silent bands and pins the
// floor at exactly -100 dB.
const energyEpsilon = 1e-10

// defaultBandEdges are the contiguous band boundaries in Hz: each band
// spans edges[i] to edges[i+1].
var defaultBandEdges = [NumBands + 1]float64{20, 250, 2000, 8000, 20000}

// bandNames index-aligns with the bands in ascending frequency order.
var bandNames = [NumBands]string{"Low", "Low-Mid", "High-Mid", "High"}

// BandName returns the display name of band i, or "" out of range.
func BandName(i int) string {
	if i < 0 || i >= NumBands {
		return ""
	}
	return bandNames[i]
}

// Band is a reporting snapshot of one frequency band.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
	Linear float64
	DB     float64
}

// BandAnalyzer folds a magnitude spectrum into NumBands energy values,
// reported both linear and in dB. It is not safe for concurrent use on
// its own; the Analyzer serializes Analyze against readers under its
// results lock.
type BandAnalyzer struct {
	edges      [NumBands + 1]float64
	aWeighting bool
	linear     [NumBands]float64
	db         [NumBands]float64
}

// NewBandAnalyzer creates an analyzer over the default band layout.
// With aWeighting set, magnitudes are scaled by the A-curve before
// squaring.
func NewBandAnalyzer(aWeighting bool) *BandAnalyzer {
	b := &BandAnalyzer{
		edges:      defaultBandEdges,
		aWeighting: aWeighting,
	}
	b.Reset()
	return b
}

// Analyze folds spectrum into the band energies. binWidth is the
// spectrum's frequency resolution in Hz. Nil spectra and non-positive
// bin widths leave the previous values untouched; bands entirely above
// the spectrum's range report the floor.
func (b *BandAnalyzer) Analyze(spectrum []float64, binWidth float64) {
	numBins := len(spectrum)
	if numBins == 0 || binWidth <= 0 {
		return
	}

	for band := 0; band < NumBands; band++ {
		startBin := int(b.edges[band] / binWidth)
		endBin := int(b.edges[band+1] / binWidth)
		if startBin < 0 {
			startBin = 0
		}
		if startBin >= numBins {
			// Entirely above Nyquist for this configuration.
			b.linear[band] = 0
			b.db[band] = EnergyFloorDB
			continue
		}
		if endBin >= numBins {
			endBin = numBins - 1
		}

		var sum float64
		binCount := 0
		for i := startBin; i <= endBin; i++ {
			mag := spectrum[i]
			if b.aWeighting {
				mag *= aWeight(float64(i) * binWidth)
			}
			sum += mag * mag
			binCount++
		}
		if binCount == 0 {
			continue
		}

		linear := sum / float64(binCount)
		b.linear[band] = linear
		b.db[band] = linearToDB(linear)
	}
}

// EnergiesDB returns the band energies in dB, ascending frequency
// order.
func (b *BandAnalyzer) EnergiesDB() [NumBands]float64 {
	return b.db
}

// Energies returns the linear band energies.
func (b *BandAnalyzer) Energies() [NumBands]float64 {
	return b.linear
}

// Bands returns a named snapshot of the current band values.
func (b *BandAnalyzer) Bands() []Band {
	out := make([]Band, NumBands)
	for i := 0; i < NumBands; i++ {
		out[i] = Band{
			Name:   bandNames[i],
			LowHz:  b.edges[i],
			HighHz: b.edges[i+1],
			Linear: b.linear[i],
			DB:     b.db[i],
		}
	}
	return out
}

// Reset returns every band to the floor.
func (b *BandAnalyzer) Reset() {
	for i := 0; i < NumBands; i++ {
		b.linear[i] = 0
		b.db[i] = EnergyFloorDB
	}
}

// linearToDB converts linear energy to dB with the floor applied.
func linearToDB(linear float64) float64 {
	if linear <= energyEpsilon {
		return EnergyFloorDB
	}
	return 10 * math.Log10(linear)
}

// aWeight evaluates the A-weighting curve at frequency f. This is the
// unnormalized rational form; the usual +2 dB trim at 1 kHz is not
// applied, matching the control application's expectation.
func aWeight(f float64) float64 {
	if f <= 0 {
		return 0
	}
	const c = 12194.217
	f2 := f * f
	num := c * c * f2 * f2
	den := (f2 + 20.6*20.6) *
		math.Sqrt((f2+107.7*107.7)*(f2+737.9*737.9)) *
		(f2 + c*c)
	if den <= 0 {
		return 0
	}
	return num / den
}
