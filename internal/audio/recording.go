// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes the device-rate stream the worker delivers to a WAV file.
// It is owned by the worker goroutine and is not safe for concurrent use.
type Recorder struct {
	path      string
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer
	full      float64
	frames    int64
}

// NewRecorder creates dir if needed and opens a timestamped WAV file in it.
func NewRecorder(dir string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording dir: %w", err)
	}
	name := fmt.Sprintf("time2freq-%s.wav", time.Now().Format("20060102-150405"))
	return NewRecorderFile(filepath.Join(dir, name), sampleRate, channels, bitDepth)
}

// NewRecorderFile records to path.
func NewRecorderFile(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
		full: float64(int64(1)<<(bitDepth-1)) - 1,
	}, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of frames written.
func (r *Recorder) Frames() int64 { return r.frames }

// Write appends interleaved samples, clipping to [-1, 1].
func (r *Recorder) Write(samples []float32) error {
	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.full))
	}
	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.frames += int64(len(samples) / r.sampleBuf.Format.NumChannels)
	return nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	return errors.Join(r.encoder.Close(), r.file.Close())
}
