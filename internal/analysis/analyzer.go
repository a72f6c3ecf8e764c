// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trackprobe/internal/log"
)

// Analysis scheduling bounds.
const (
	MinOrder          = 5
	MaxOrder          = 15
	DefaultUpdateRate = 10
	MinUpdateRate     = 1
	MaxUpdateRate     = 100
)

// Config configures an Analyzer.
type Config struct {
	FFTOrder   int     // Window size is 1<<FFTOrder samples.
	SampleRate float64 // Input sample rate in Hz.
	UpdateRate int     // Ticks per second; 0 means DefaultUpdateRate.
	Window     WindowFunc
	AWeighting bool
}

// Analyzer owns the analysis pipeline and schedules it lazily: the
// audio callback feeds samples and flips a dirty flag, and a ticker
// goroutine computes a spectrum only on ticks that find the flag set.
// Ticks with no new audio cost one atomic load.
type Analyzer struct {
	ring      *SampleRing
	transform *SpectralTransform
	bands     *BandAnalyzer

	dirty atomic.Bool // set by Feed, consumed by tick

	resMu        sync.Mutex // Guards bands, magBuf and compute statistics.
	magBuf       []float64
	computeCount uint64
	totalTime    time.Duration
	avgTime      time.Duration

	lcMu     sync.Mutex // Protects ticker and rate during Start/Stop.
	rate     int
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAnalyzer builds the ring, transform and band analyzer for the
// given configuration.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.FFTOrder < MinOrder || cfg.FFTOrder > MaxOrder {
		return nil, fmt.Errorf("fft order %d outside [%d, %d]", cfg.FFTOrder, MinOrder, MaxOrder)
	}
	size := 1 << cfg.FFTOrder

	ring, err := NewSampleRing(size)
	if err != nil {
		return nil, err
	}
	transform, err := NewSpectralTransform(ring, size, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		ring:      ring,
		transform: transform,
		bands:     NewBandAnalyzer(cfg.AWeighting),
		magBuf:    make([]float64, transform.NumBins()),
		rate:      DefaultUpdateRate,
	}
	if cfg.UpdateRate != 0 {
		a.SetUpdateRate(cfg.UpdateRate)
	}

	log.Infof("Analyzer: initialized (window: %d samples, %.1f Hz bins, %d Hz updates)",
		size, transform.BinWidth(), a.rate)
	return a, nil
}

// Feed pushes an interleaved block into the ring and marks the
// pipeline dirty. Called from the audio callback; does not block on
// analysis work.
func (a *Analyzer) Feed(block []float32, channels int) {
	a.ring.WriteInterleaved(block, channels)
	a.dirty.Store(true)
}

// FeedMono is Feed for already-mono float64 samples.
func (a *Analyzer) FeedMono(samples []float64) {
	a.ring.WriteMono(samples)
	a.dirty.Store(true)
}

// tick consumes the dirty flag. Clean ticks return immediately; dirty
// ticks run one compute pass. Audio arriving during the pass re-marks
// the flag, so nothing is lost, just deferred to the next tick.
func (a *Analyzer) tick() {
	if !a.dirty.CompareAndSwap(true, false) {
		return
	}
	a.ComputeNow()
}

// ComputeNow forces one analysis pass: window, FFT, band fold, stats.
// It reports false when the ring has no full fresh window yet.
func (a *Analyzer) ComputeNow() bool {
	start := time.Now()

	if !a.transform.Compute() {
		return false
	}

	a.resMu.Lock()
	defer a.resMu.Unlock()

	if err := a.transform.MagnitudesInto(a.magBuf); err != nil {
		log.Errorf("Analyzer: reading magnitudes: %v", err)
		return false
	}
	a.bands.Analyze(a.magBuf, a.transform.BinWidth())

	elapsed := time.Since(start)
	a.computeCount++
	a.totalTime += elapsed
	a.avgTime = a.totalTime / time.Duration(a.computeCount)

	if a.computeCount%100 == 0 {
		log.Debugf("Analyzer: %d computes, average %s", a.computeCount, a.avgTime)
	}
	return true
}

// BandEnergiesDB returns the band energies in dB, ascending frequency
// order.
func (a *Analyzer) BandEnergiesDB() [NumBands]float64 {
	a.resMu.Lock()
	defer a.resMu.Unlock()
	return a.bands.EnergiesDB()
}

// BandEnergies returns the linear band energies.
func (a *Analyzer) BandEnergies() [NumBands]float64 {
	a.resMu.Lock()
	defer a.resMu.Unlock()
	return a.bands.Energies()
}

// Bands returns a named snapshot of the current band values.
func (a *Analyzer) Bands() []Band {
	a.resMu.Lock()
	defer a.resMu.Unlock()
	return a.bands.Bands()
}

// SpectrumInto copies the latest magnitude spectrum into dst; dst must
// hold NumBins values.
func (a *Analyzer) SpectrumInto(dst []float64) error {
	return a.transform.MagnitudesInto(dst)
}

// Stats returns the number of completed computes and the running
// average compute duration.
func (a *Analyzer) Stats() (count uint64, avg time.Duration) {
	a.resMu.Lock()
	defer a.resMu.Unlock()
	return a.computeCount, a.avgTime
}

// Ready reports whether at least one spectrum has been computed.
func (a *Analyzer) Ready() bool { return a.transform.Ready() }

// BinWidth returns the spectrum's frequency resolution in Hz.
func (a *Analyzer) BinWidth() float64 { return a.transform.BinWidth() }

// WindowSize returns the analysis window length in samples.
func (a *Analyzer) WindowSize() int { return a.transform.Size() }

// NumBins returns the number of spectrum bins.
func (a *Analyzer) NumBins() int { return a.transform.NumBins() }

// SetUpdateRate changes the tick rate, clamped to
// [MinUpdateRate, MaxUpdateRate]. Takes effect immediately when the
// loop is running.
func (a *Analyzer) SetUpdateRate(hz int) {
	if hz < MinUpdateRate {
		hz = MinUpdateRate
	}
	if hz > MaxUpdateRate {
		hz = MaxUpdateRate
	}

	a.lcMu.Lock()
	a.rate = hz
	if a.ticker != nil {
		a.ticker.Reset(time.Second / time.Duration(hz))
	}
	a.lcMu.Unlock()

	log.Debugf("Analyzer: update rate set to %d Hz", hz)
}

// Rate returns the current tick rate in Hz.
func (a *Analyzer) Rate() int {
	a.lcMu.Lock()
	defer a.lcMu.Unlock()
	return a.rate
}

// Start launches the tick loop. Safe to call when already running;
// the extra call is a no-op.
func (a *Analyzer) Start() {
	a.lcMu.Lock()
	if a.ticker != nil {
		a.lcMu.Unlock()
		log.Warnf("Analyzer: Start called but already running.")
		return
	}

	a.ticker = time.NewTicker(time.Second / time.Duration(a.rate))
	a.doneChan = make(chan struct{})
	a.stopOnce = sync.Once{}

	// Capture for the goroutine to avoid racing Stop on the fields.
	ticker := a.ticker
	doneChan := a.doneChan

	a.lcMu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Infof("Analyzer: tick loop started (%d Hz)", a.Rate())
		for {
			select {
			case <-ticker.C:
				a.tick()
			case <-doneChan:
				log.Debugf("Analyzer: tick loop received stop signal.")
				return
			}
		}
	}()
}

// Stop ends the tick loop and waits for it to drain. Safe to call
// more than once.
func (a *Analyzer) Stop() error {
	a.lcMu.Lock()
	if a.ticker == nil {
		a.lcMu.Unlock()
		log.Debugf("Analyzer: Stop called but not running.")
		return nil
	}
	a.stopOnce.Do(func() {
		close(a.doneChan)
		a.ticker.Stop()
		a.ticker = nil
	})
	a.lcMu.Unlock()

	a.wg.Wait()
	return nil
}

// Close implements io.Closer by stopping the tick loop.
func (a *Analyzer) Close() error {
	return a.Stop()
}

// Compile-time checks for the provider interfaces.
var _ SpectrumProvider = (*Analyzer)(nil)
var _ BandEnergyProvider = (*Analyzer)(nil)
var _ interface{ Close() error } = (*Analyzer)(nil)
