package audio

import (
	"math"
	"strconv"

	"trackprobe/internal/config"
)

// Shared fixtures for the audio package tests.
const (
	testSampleRate = 44100.0
	testFrameSize  = 512

	lowThreshold  = 0.0001
	highThreshold = 0.999
)

var (
	testBuffer  = makeRampBuffer(testFrameSize * 2)
	quietBuffer = makeSquareBuffer(testFrameSize*2, 0.001)
	loudBuffer  = makeSquareBuffer(testFrameSize*2, 0.5)
)

// makeRampBuffer fills a buffer with alternating-sign samples ramping
// up to just under half scale.
func makeRampBuffer(n int) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		v := float32(i%100) * 0.005
		if i%2 == 1 {
			v = -v
		}
		buf[i] = v
	}
	return buf
}

// makeSquareBuffer fills a buffer with a square wave at the given
// amplitude.
func makeSquareBuffer(n int, amp float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = amp
		} else {
			buf[i] = -amp
		}
	}
	return buf
}

func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	cfg.Audio.InputChannels = 2
	return cfg
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func absFloat(v float64) float64 {
	return math.Abs(v)
}
