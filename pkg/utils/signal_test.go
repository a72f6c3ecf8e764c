// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100.0
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// A "hill" with its peak at position testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestGenerateSineWave(t *testing.T) {
	wave := GenerateSineWave(testSize, testSampleRate, testFrequency)

	if len(wave) != testSize {
		t.Fatalf("len = %d, want %d", len(wave), testSize)
	}
	if wave[0] != 0 {
		t.Errorf("wave[0] = %v, want 0 (sine starts at zero phase)", wave[0])
	}

	peak := 0.0
	for _, v := range wave {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	if peak > 0.9+1e-9 {
		t.Errorf("peak = %v, want <= 0.9", peak)
	}
	if peak < 0.85 {
		t.Errorf("peak = %v, want near 0.9 over a full period", peak)
	}

	// 440 Hz at 44100 Hz crosses zero upward ~once per 100.2 samples.
	period := float64(testSampleRate) / testFrequency
	quarter := int(period / 4)
	if wave[quarter] < 0.8 {
		t.Errorf("wave[%d] = %v, want near the positive crest", quarter, wave[quarter])
	}
}

func TestGenerateComplexWave(t *testing.T) {
	wave := GenerateComplexWave(testSize, testSampleRate)

	if len(wave) != testSize {
		t.Fatalf("len = %d, want %d", len(wave), testSize)
	}

	var sumAbs float64
	for _, v := range wave {
		if math.Abs(v) > 1.0 {
			t.Fatalf("sample %v exceeds full scale", v)
		}
		sumAbs += math.Abs(v)
	}
	if sumAbs == 0 {
		t.Fatal("complex wave is silent")
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		startBin int
		endBin   int
		want     int
	}{
		{"Full Range", 0, testSize - 1, testSize / 4},
		{"Peak Inside Range", testSize / 8, testSize / 2, testSize / 4},
		{"Peak Outside Range", testSize / 2, testSize - 1, testSize / 2},
		{"Negative Start Clamps", -10, testSize - 1, testSize / 4},
		{"End Past Length Clamps", 0, testSize * 2, testSize / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindPeakBin(testMagnitudes, tt.startBin, tt.endBin)
			if got != tt.want {
				t.Errorf("FindPeakBin(%d, %d) = %d, want %d",
					tt.startBin, tt.endBin, got, tt.want)
			}
		})
	}
}

func TestFindPeakBinEmpty(t *testing.T) {
	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("FindPeakBin(nil) = %d, want 0", got)
	}
}
