// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestBandLayout(t *testing.T) {
	bands := NewBandAnalyzer(false).Bands()
	if len(bands) != NumBands {
		t.Fatalf("Bands() returned %d entries, want %d", len(bands), NumBands)
	}

	wantNames := []string{"Low", "Low-Mid", "High-Mid", "High"}
	wantEdges := []float64{20, 250, 2000, 8000, 20000}
	for i, band := range bands {
		if band.Name != wantNames[i] {
			t.Errorf("band[%d].Name = %q, want %q", i, band.Name, wantNames[i])
		}
		if band.LowHz != wantEdges[i] || band.HighHz != wantEdges[i+1] {
			t.Errorf("band[%d] covers %v-%v Hz, want %v-%v",
				i, band.LowHz, band.HighHz, wantEdges[i], wantEdges[i+1])
		}
		if band.DB != EnergyFloorDB {
			t.Errorf("band[%d].DB = %v before any Analyze, want floor %v", i, band.DB, EnergyFloorDB)
		}
	}
}

func TestAnalyzeFlatSpectrum(t *testing.T) {
	b := NewBandAnalyzer(false)

	// A flat 0.1 magnitude spectrum averages to 0.01 energy in every
	// band regardless of how many bins each one spans.
	spectrum := make([]float64, 512)
	for i := range spectrum {
		spectrum[i] = 0.1
	}
	b.Analyze(spectrum, testSampleRate/testWindowSize)

	for i, db := range b.EnergiesDB() {
		if math.Abs(db-(-20.0)) > 1e-9 {
			t.Errorf("band[%d] = %v dB, want -20", i, db)
		}
	}
	for i, lin := range b.Energies() {
		if math.Abs(lin-0.01) > 1e-12 {
			t.Errorf("band[%d] linear = %v, want 0.01", i, lin)
		}
	}
}

func TestAnalyzeSilenceHitsFloor(t *testing.T) {
	b := NewBandAnalyzer(false)
	b.Analyze(make([]float64, 512), testSampleRate/testWindowSize)

	for i, db := range b.EnergiesDB() {
		if db != EnergyFloorDB {
			t.Errorf("band[%d] = %v dB for silence, want exactly %v", i, db, EnergyFloorDB)
		}
	}
}

func TestAnalyzeBandsAboveSpectrumReportFloor(t *testing.T) {
	b := NewBandAnalyzer(false)

	// Two bins of 5 Hz cover 0-10 Hz; every band starts above that.
	b.Analyze([]float64{1.0, 1.0}, 5.0)

	for i, db := range b.EnergiesDB() {
		if db != EnergyFloorDB {
			t.Errorf("band[%d] = %v dB, want floor when the band is above the spectrum", i, db)
		}
	}
}

func TestAnalyzeSingleBandDominates(t *testing.T) {
	b := NewBandAnalyzer(false)

	// Energy only at ~4.3 kHz, inside High-Mid (2000-8000 Hz).
	spectrum := make([]float64, 512)
	spectrum[100] = 1.0
	b.Analyze(spectrum, testSampleRate/testWindowSize)

	db := b.EnergiesDB()
	const highMid = 2
	for i := 0; i < NumBands; i++ {
		if i == highMid {
			if db[i] <= EnergyFloorDB {
				t.Errorf("High-Mid = %v dB, want above the floor", db[i])
			}
			continue
		}
		if db[i] != EnergyFloorDB {
			t.Errorf("band[%d] = %v dB, want floor with no energy in range", i, db[i])
		}
		if db[i] >= db[highMid] {
			t.Errorf("band[%d] = %v dB not below High-Mid %v dB", i, db[i], db[highMid])
		}
	}
}

func TestAnalyzeSharedEdgeBin(t *testing.T) {
	b := NewBandAnalyzer(false)

	// With 100 Hz bins the 250 Hz edge maps to bin 2, which the
	// inclusive bin walk counts towards both Low and Low-Mid.
	spectrum := make([]float64, 50)
	spectrum[2] = 2.0
	b.Analyze(spectrum, 100.0)

	db := b.EnergiesDB()

	// Low spans bins 0-2 (3 bins), Low-Mid bins 2-20 (19 bins).
	wantLow := 10 * math.Log10(4.0/3.0)
	wantLowMid := 10 * math.Log10(4.0/19.0)
	if math.Abs(db[0]-wantLow) > 1e-9 {
		t.Errorf("Low = %v dB, want %v", db[0], wantLow)
	}
	if math.Abs(db[1]-wantLowMid) > 1e-9 {
		t.Errorf("Low-Mid = %v dB, want %v", db[1], wantLowMid)
	}
}

func TestAnalyzeGuardsKeepPreviousValues(t *testing.T) {
	b := NewBandAnalyzer(false)

	spectrum := make([]float64, 512)
	for i := range spectrum {
		spectrum[i] = 0.1
	}
	b.Analyze(spectrum, testSampleRate/testWindowSize)
	before := b.EnergiesDB()

	b.Analyze(nil, testSampleRate/testWindowSize)
	b.Analyze(spectrum, 0)
	b.Analyze(spectrum, -1)

	if got := b.EnergiesDB(); got != before {
		t.Errorf("Energies changed after guarded calls: %v, want %v", got, before)
	}
}

func TestAWeightCurve(t *testing.T) {
	// The unnormalized A-curve sits near 0.794 at 1 kHz (the usual
	// normalization would lift that to 1.0).
	if got := aWeight(1000); math.Abs(got-0.794) > 0.01 {
		t.Errorf("aWeight(1000) = %v, want ~0.794", got)
	}
	if aWeight(100) >= aWeight(1000) {
		t.Errorf("aWeight(100) = %v not below aWeight(1000) = %v", aWeight(100), aWeight(1000))
	}
	if got := aWeight(0); got != 0 {
		t.Errorf("aWeight(0) = %v, want 0", got)
	}
}

func TestAWeightingAttenuatesLowBand(t *testing.T) {
	spectrum := make([]float64, 512)
	for i := range spectrum {
		spectrum[i] = 0.1
	}
	binWidth := testSampleRate / testWindowSize

	flat := NewBandAnalyzer(false)
	flat.Analyze(spectrum, binWidth)
	weighted := NewBandAnalyzer(true)
	weighted.Analyze(spectrum, binWidth)

	flatDB := flat.EnergiesDB()
	weightedDB := weighted.EnergiesDB()
	if weightedDB[0] >= flatDB[0] {
		t.Errorf("A-weighted Low band %v dB not below unweighted %v dB", weightedDB[0], flatDB[0])
	}
}

func TestBandAnalyzerReset(t *testing.T) {
	b := NewBandAnalyzer(false)

	spectrum := make([]float64, 512)
	for i := range spectrum {
		spectrum[i] = 0.5
	}
	b.Analyze(spectrum, testSampleRate/testWindowSize)
	b.Reset()

	for i, db := range b.EnergiesDB() {
		if db != EnergyFloorDB {
			t.Errorf("band[%d] = %v dB after Reset, want %v", i, db, EnergyFloorDB)
		}
	}
	for i, lin := range b.Energies() {
		if lin != 0 {
			t.Errorf("band[%d] linear = %v after Reset, want 0", i, lin)
		}
	}
}
