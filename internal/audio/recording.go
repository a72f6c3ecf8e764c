package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	bitDepth := e.config.Recording.BitDepth
	e.wavEncoder = wav.NewEncoder(file, int(e.config.Audio.SampleRate),
		bitDepth, e.config.Audio.InputChannels, 1)

	// Full-scale integer for the chosen depth; the callback multiplies
	// clamped float32 samples by this before writing.
	e.recordScale = float64(int(1)<<(bitDepth-1) - 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.config.Audio.InputChannels,
			SampleRate:  int(e.config.Audio.SampleRate),
		},
		SourceBitDepth: bitDepth,
		Data:           make([]int, e.config.Audio.FramesPerBuffer*e.config.Audio.InputChannels),
	}

	atomic.StoreInt32(&e.isRecording, 1)

	return nil
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	if err := e.StopInputStream(); err != nil {
		return err
	}

	return nil
}
