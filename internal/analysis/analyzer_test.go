// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"
)

func newTestAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(cfg)
	if err != nil {
		t.Fatalf("NewAnalyzer(%+v) failed: %v", cfg, err)
	}
	return a
}

func TestAnalyzerRejectsBadOrder(t *testing.T) {
	for _, order := range []int{0, MinOrder - 1, MaxOrder + 1} {
		if _, err := NewAnalyzer(Config{FFTOrder: order, SampleRate: 44100, Window: Hann}); err == nil {
			t.Errorf("NewAnalyzer accepted order %d, want error", order)
		}
	}
	for _, order := range []int{MinOrder, MaxOrder} {
		if _, err := NewAnalyzer(Config{FFTOrder: order, SampleRate: 44100, Window: Hann}); err != nil {
			t.Errorf("NewAnalyzer rejected valid order %d: %v", order, err)
		}
	}
}

func TestAnalyzerLazyTicks(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, Window: Hann})
	window := exactBinSine(a.WindowSize(), 10)

	// A tick with no audio fed yet does nothing.
	a.tick()
	if count, _ := a.Stats(); count != 0 {
		t.Fatalf("Compute count = %d after an idle tick, want 0", count)
	}

	a.FeedMono(window)
	a.tick()
	if count, _ := a.Stats(); count != 1 {
		t.Fatalf("Compute count = %d after a dirty tick, want 1", count)
	}

	// The flag was consumed; ticks stay cheap until fresh audio lands.
	a.tick()
	a.tick()
	if count, _ := a.Stats(); count != 1 {
		t.Fatalf("Compute count = %d after idle ticks, want still 1", count)
	}

	a.FeedMono(window)
	a.tick()
	if count, _ := a.Stats(); count != 2 {
		t.Fatalf("Compute count = %d after the second dirty tick, want 2", count)
	}
}

func TestAnalyzerTickWithoutFullWindow(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, Window: Hann})
	size := a.WindowSize()

	// Half a window marks the pipeline dirty but cannot compute yet.
	a.FeedMono(make([]float64, size/2))
	a.tick()
	if count, _ := a.Stats(); count != 0 {
		t.Fatalf("Compute count = %d with half a window, want 0", count)
	}

	a.FeedMono(make([]float64, size/2))
	a.tick()
	if count, _ := a.Stats(); count != 1 {
		t.Fatalf("Compute count = %d once the window filled, want 1", count)
	}
}

func TestAnalyzerPipeline(t *testing.T) {
	// Order 10 at 44.1 kHz gives 43.07 Hz bins; a sine on bin 23 sits
	// at ~990 Hz, squarely in the Low-Mid band.
	a := newTestAnalyzer(t, Config{FFTOrder: 10, SampleRate: 44100, Window: Hann})

	if got, want := a.BinWidth(), 44100.0/1024.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("BinWidth() = %v, want %v", got, want)
	}
	if a.Ready() {
		t.Fatal("Ready() = true before any compute")
	}

	a.FeedMono(exactBinSine(a.WindowSize(), 23))
	if !a.ComputeNow() {
		t.Fatal("ComputeNow failed with a full window available")
	}
	if !a.Ready() {
		t.Fatal("Ready() = false after a successful compute")
	}

	spectrum := make([]float64, a.NumBins())
	if err := a.SpectrumInto(spectrum); err != nil {
		t.Fatalf("SpectrumInto failed: %v", err)
	}
	peakBin := 0
	for i, m := range spectrum {
		if m > spectrum[peakBin] {
			peakBin = i
		}
	}
	if peakBin != 23 {
		t.Errorf("Peak at bin %d, want 23", peakBin)
	}
	if math.Abs(spectrum[23]-0.5) > 0.01 {
		t.Errorf("Peak magnitude = %v, want ~0.5", spectrum[23])
	}

	const lowMid = 1
	db := a.BandEnergiesDB()
	for i := 0; i < NumBands; i++ {
		if i != lowMid && db[i] >= db[lowMid] {
			t.Errorf("band[%d] = %v dB not below Low-Mid %v dB", i, db[i], db[lowMid])
		}
	}

	bands := a.Bands()
	if bands[lowMid].Name != "Low-Mid" {
		t.Errorf("bands[%d].Name = %q, want Low-Mid", lowMid, bands[lowMid].Name)
	}
	if bands[lowMid].DB != db[lowMid] {
		t.Errorf("Bands() snapshot %v dB disagrees with BandEnergiesDB %v", bands[lowMid].DB, db[lowMid])
	}
}

func TestAnalyzerFeedInterleaved(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, Window: Hann})
	size := a.WindowSize()

	// Identical sine on both channels must survive the mono mix intact.
	mono := exactBinSine(size, 10)
	block := make([]float32, size*2)
	for f := 0; f < size; f++ {
		block[f*2] = float32(mono[f])
		block[f*2+1] = float32(mono[f])
	}

	a.Feed(block, 2)
	if !a.ComputeNow() {
		t.Fatal("ComputeNow failed after an interleaved feed")
	}

	spectrum := make([]float64, a.NumBins())
	if err := a.SpectrumInto(spectrum); err != nil {
		t.Fatalf("SpectrumInto failed: %v", err)
	}
	if math.Abs(spectrum[10]-0.5) > 0.02 {
		t.Errorf("Peak magnitude = %v after stereo mix, want ~0.5", spectrum[10])
	}
}

func TestAnalyzerStats(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, Window: Hann})
	window := exactBinSine(a.WindowSize(), 10)

	a.FeedMono(window)
	a.ComputeNow()
	a.FeedMono(window)
	a.ComputeNow()

	count, avg := a.Stats()
	if count != 2 {
		t.Errorf("Stats count = %d, want 2", count)
	}
	if avg <= 0 {
		t.Errorf("Stats average duration = %v, want > 0", avg)
	}
}

func TestAnalyzerUpdateRate(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, Window: Hann})
	if got := a.Rate(); got != DefaultUpdateRate {
		t.Errorf("Rate() = %d, want default %d", got, DefaultUpdateRate)
	}

	cases := []struct{ set, want int }{
		{0, MinUpdateRate},
		{-5, MinUpdateRate},
		{24, 24},
		{MaxUpdateRate, MaxUpdateRate},
		{MaxUpdateRate + 140, MaxUpdateRate},
	}
	for _, tc := range cases {
		a.SetUpdateRate(tc.set)
		if got := a.Rate(); got != tc.want {
			t.Errorf("Rate() = %d after SetUpdateRate(%d), want %d", got, tc.set, tc.want)
		}
	}

	b := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, UpdateRate: 50, Window: Hann})
	if got := b.Rate(); got != 50 {
		t.Errorf("Rate() = %d for configured rate 50, want 50", got)
	}
}

func TestAnalyzerStartStopLifecycle(t *testing.T) {
	a := newTestAnalyzer(t, Config{FFTOrder: 8, SampleRate: 44100, UpdateRate: 100, Window: Hann})
	window := exactBinSine(a.WindowSize(), 10)

	a.Start()
	a.Start() // Second call must be a harmless no-op.

	a.FeedMono(window)
	waitForComputeCount(t, a, 1)

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	// The loop must be restartable after a full stop.
	a.Start()
	a.FeedMono(window)
	waitForComputeCount(t, a, 2)

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func waitForComputeCount(t *testing.T, a *Analyzer, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if count, _ := a.Stats(); count >= want {
			return
		}
		if time.Now().After(deadline) {
			count, _ := a.Stats()
			t.Fatalf("Compute count = %d, want >= %d before deadline", count, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
