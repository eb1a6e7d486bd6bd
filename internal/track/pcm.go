// SPDX-License-Identifier: MIT
package track

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
)

// pcmReader is the part of the go-audio WAV and AIFF decoders we use.
type pcmReader interface {
	PCMBuffer(buf *audio.IntBuffer) (int, error)
}

// intSource converts integer PCM from a go-audio decoder to float32.
type intSource struct {
	dec        pcmReader
	format     *audio.Format
	sampleRate int
	channels   int
	scale      float32
	// offset recentres unsigned 8-bit WAV data.
	offset int
	// ieee marks 32-bit float data, which the decoder hands back as the
	// sign-extended bit pattern.
	ieee bool
	ib   *audio.IntBuffer
}

func newIntSource(dec pcmReader, format *audio.Format, bitDepth int, unsigned8 bool) *intSource {
	s := &intSource{
		dec:        dec,
		format:     format,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
	}
	if bitDepth == 8 && unsigned8 {
		s.offset = 128
	}
	return s
}

func (s *intSource) SampleRate() int { return s.sampleRate }
func (s *intSource) Channels() int   { return s.channels }
func (s *intSource) Close() error    { return nil }

func (s *intSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}
	if s.ib == nil || cap(s.ib.Data) < want {
		s.ib = &audio.IntBuffer{Data: make([]int, want), Format: s.format}
	}
	s.ib.Data = s.ib.Data[:want]

	n, err := s.dec.PCMBuffer(s.ib)
	n -= n % s.channels
	if s.ieee {
		for i, v := range s.ib.Data[:n] {
			dst[i] = math.Float32frombits(uint32(int32(v)))
		}
	} else {
		for i, v := range s.ib.Data[:n] {
			dst[i] = float32(v-s.offset) * s.scale
		}
	}

	switch {
	case err == nil && n == 0:
		return 0, io.EOF
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// A truncated data chunk ends the stream with whatever was read.
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	default:
		return n, fmt.Errorf("%w: %w", ErrDecode, err)
	}
}
