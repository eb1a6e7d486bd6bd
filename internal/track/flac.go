// SPDX-License-Identifier: MIT
package track

import (
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

type flacDecoder struct{}

func (flacDecoder) Decode(rs io.ReadSeeker) (Source, error) {
	stream, format, err := flac.Decode(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	// beep streams stereo pairs; more than two source channels are folded
	// to the first two by the decoder.
	channels := min(format.NumChannels, 2)
	return &flacSource{
		stream:     stream,
		sampleRate: int(format.SampleRate),
		channels:   channels,
	}, nil
}

type flacSource struct {
	stream     beep.StreamSeekCloser
	sampleRate int
	channels   int
	pairs      [][2]float64
	done       bool
}

func (s *flacSource) SampleRate() int { return s.sampleRate }
func (s *flacSource) Channels() int   { return s.channels }
func (s *flacSource) Close() error    { return s.stream.Close() }

func (s *flacSource) ReadSamples(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	frames := len(dst) / max(s.channels, 1)
	if frames == 0 {
		return 0, nil
	}
	if cap(s.pairs) < frames {
		s.pairs = make([][2]float64, frames)
	}
	s.pairs = s.pairs[:frames]

	n, ok := s.stream.Stream(s.pairs)
	i := 0
	for _, p := range s.pairs[:n] {
		dst[i] = float32(p[0])
		i++
		if s.channels == 2 {
			dst[i] = float32(p[1])
			i++
		}
	}
	if !ok {
		if err := s.stream.Err(); err != nil {
			return i, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		s.done = true
		if i == 0 {
			return 0, io.EOF
		}
	}
	return i, nil
}
