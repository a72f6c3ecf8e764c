// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"trackprobe/internal/log"
	"trackprobe/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied before the FFT.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Pre-allocated buffers for the transform hot path.
type spectralWorkspace struct {
	input     []float64    // Window pulled from the ring, tapered in place.
	fftOutput []complex128 // Complex FFT results (N/2 + 1 values).
	magnitude []float64    // Normalized magnitudes (N/2 bins, Nyquist dropped).
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.RWMutex // Protects magnitude and ready against readers.
}

// SpectralTransform turns accumulated samples into a magnitude
// spectrum. Compute pulls one full window from the ring, tapers it,
// runs a real-input FFT and normalizes magnitudes by N/2, so a
// full-scale sinusoid at an exact bin lands near 0.5 (the window's
// coherent gain) at that bin.
//
// All buffers are allocated at construction; Compute allocates
// nothing.
type SpectralTransform struct {
	ring       *SampleRing
	fft        *fourier.FFT
	fftSize    int
	numBins    int
	sampleRate float64
	workspace  spectralWorkspace
	ready      bool // set after the first successful Compute, under workspace.mu
}

// NewSpectralTransform builds a transform reading from ring. fftSize
// must be a power of 2; use order k via 1<<k.
func NewSpectralTransform(ring *SampleRing, fftSize int, sampleRate float64, windowType WindowFunc) (*SpectralTransform, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if ring == nil {
		return nil, fmt.Errorf("sample ring cannot be nil")
	}
	if ring.Size() != fftSize {
		return nil, fmt.Errorf("ring window size %d does not match fft size %d", ring.Size(), fftSize)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	log.Debugf("Analysis: initializing SpectralTransform (size: %d, sample rate: %.1f Hz, window: %d)",
		fftSize, sampleRate, windowType)

	return &SpectralTransform{
		ring:       ring,
		fft:        fourier.NewFFT(fftSize),
		fftSize:    fftSize,
		numBins:    fftSize / 2,
		sampleRate: sampleRate,
		workspace: spectralWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, fftSize/2+1),
			magnitude: make([]float64, fftSize/2),
			window:    windowCoeffs,
		},
	}, nil
}

// Compute runs one analysis pass. It fails fast, returning false and
// leaving the previous spectrum intact, when the ring has not
// accumulated a fresh full window since the last pass.
func (t *SpectralTransform) Compute() bool {
	t.workspace.mu.Lock()
	defer t.workspace.mu.Unlock()

	if !t.ring.ReadLatest(t.workspace.input) {
		return false
	}
	t.ring.Consume()

	for i, w := range t.workspace.window {
		t.workspace.input[i] *= w
	}

	t.fft.Coefficients(t.workspace.fftOutput, t.workspace.input)

	norm := 1.0 / float64(t.numBins)
	for i := 0; i < t.numBins; i++ {
		t.workspace.magnitude[i] = cmplx.Abs(t.workspace.fftOutput[i]) * norm
	}
	t.ready = true
	return true
}

// Ready reports whether a spectrum has been computed yet.
func (t *SpectralTransform) Ready() bool {
	t.workspace.mu.RLock()
	defer t.workspace.mu.RUnlock()
	return t.ready
}

// Magnitudes returns a copy of the latest magnitude spectrum. Readers
// on a hot path should use MagnitudesInto instead.
func (t *SpectralTransform) Magnitudes() []float64 {
	t.workspace.mu.RLock()
	defer t.workspace.mu.RUnlock()

	magCopy := make([]float64, len(t.workspace.magnitude))
	copy(magCopy, t.workspace.magnitude)
	return magCopy
}

// MagnitudesInto copies the latest magnitude spectrum into dest
// without allocating. dest must hold exactly NumBins values.
func (t *SpectralTransform) MagnitudesInto(dest []float64) error {
	t.workspace.mu.RLock()
	defer t.workspace.mu.RUnlock()

	if len(dest) != len(t.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d",
			len(dest), len(t.workspace.magnitude))
	}
	copy(dest, t.workspace.magnitude)
	return nil
}

// FrequencyForBin returns the center frequency (Hz) for a bin index.
func (t *SpectralTransform) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= t.numBins {
		return 0.0
	}
	return float64(binIndex) * t.BinWidth()
}

// BinWidth returns the frequency resolution (Hz per bin).
func (t *SpectralTransform) BinWidth() float64 {
	return t.sampleRate / float64(t.fftSize)
}

// Size returns the FFT size (window length in samples).
func (t *SpectralTransform) Size() int {
	return t.fftSize // Immutable after creation, no lock needed.
}

// NumBins returns the number of magnitude bins (Size/2).
func (t *SpectralTransform) NumBins() int {
	return t.numBins
}

// SampleRate returns the configured sample rate (Hz).
func (t *SpectralTransform) SampleRate() float64 {
	return t.sampleRate
}

// ParseWindowFunc converts a string name (case-insensitive) to a
// WindowFunc, returning Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. The
// slice is seeded with 1.0 first because the window implementations
// multiply in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("Analysis: unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
