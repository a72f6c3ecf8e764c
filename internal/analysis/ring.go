// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"

	"trackprobe/pkg/bitint"
)

// SampleRing accumulates mono-mixed samples between analysis ticks.
// Capacity is twice the analysis window so the writer never overtakes
// a window that is still being read. One writer (the audio callback)
// and one reader (the analysis tick) share it under a short mutex;
// the hold time is a memcpy, never a syscall or allocation.
type SampleRing struct {
	mu        sync.Mutex
	buf       []float64
	size      int // analysis window size
	writePos  int
	available int // samples accumulated since the last Consume, capped at size
}

// NewSampleRing creates a ring for the given analysis window size,
// which must be a power of 2 like the transform it feeds.
func NewSampleRing(windowSize int) (*SampleRing, error) {
	if !bitint.IsPowerOfTwo(windowSize) {
		return nil, fmt.Errorf("window size must be a power of 2, got %d", windowSize)
	}
	return &SampleRing{
		buf:  make([]float64, windowSize*2),
		size: windowSize,
	}, nil
}

// WriteInterleaved mono-mixes an interleaved block by arithmetic mean
// across channels and appends the result. Safe to call from the audio
// callback.
func (r *SampleRing) WriteInterleaved(block []float32, channels int) {
	if channels <= 0 || len(block) < channels {
		return
	}
	frames := len(block) / channels
	inv := 1.0 / float64(channels)

	r.mu.Lock()
	for f := 0; f < frames; f++ {
		base := f * channels
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(block[base+c])
		}
		r.buf[r.writePos] = sum * inv
		r.writePos++
		if r.writePos == len(r.buf) {
			r.writePos = 0
		}
	}
	r.available += frames
	if r.available > r.size {
		r.available = r.size
	}
	r.mu.Unlock()
}

// WriteMono appends already-mono samples.
func (r *SampleRing) WriteMono(samples []float64) {
	r.mu.Lock()
	for _, s := range samples {
		r.buf[r.writePos] = s
		r.writePos++
		if r.writePos == len(r.buf) {
			r.writePos = 0
		}
	}
	r.available += len(samples)
	if r.available > r.size {
		r.available = r.size
	}
	r.mu.Unlock()
}

// ReadLatest copies the most recent len(dst) samples in arrival order
// into dst. It reports false, leaving dst untouched, when fewer than
// len(dst) samples have accumulated since the last Consume.
func (r *SampleRing) ReadLatest(dst []float64) bool {
	n := len(dst)
	if n == 0 || n > len(r.buf) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.available < n {
		return false
	}

	start := r.writePos - n
	if start < 0 {
		start += len(r.buf)
	}
	first := copy(dst, r.buf[start:])
	if first < n {
		copy(dst[first:], r.buf[:n-first])
	}
	return true
}

// Consume marks the current window as used: the next ReadLatest blocks
// until a full fresh window has accumulated, so analysis windows never
// overlap.
func (r *SampleRing) Consume() {
	r.mu.Lock()
	r.available = 0
	r.mu.Unlock()
}

// Available returns how many unconsumed samples have accumulated,
// capped at the window size.
func (r *SampleRing) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Size returns the analysis window size the ring was built for.
func (r *SampleRing) Size() int {
	return r.size
}

// Reset zero-fills the buffer and clears positions.
func (r *SampleRing) Reset() {
	r.mu.Lock()
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.writePos = 0
	r.available = 0
	r.mu.Unlock()
}
