// SPDX-License-Identifier: MIT
package track

import (
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 2 * mp3Channels
)

type mp3Decoder struct{}

func (mp3Decoder) Decode(rs io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return &mp3Source{dec: dec, sampleRate: dec.SampleRate()}, nil
}

type mp3Source struct {
	dec        io.Reader
	sampleRate int
	buf        []byte
	// carry holds the bytes of a partial frame left by the previous read.
	carry int
}

func (s *mp3Source) SampleRate() int { return s.sampleRate }
func (s *mp3Source) Channels() int   { return mp3Channels }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / mp3Channels
	if frames == 0 {
		return 0, nil
	}
	need := frames * mp3BytesPerFrame
	if cap(s.buf) < need {
		nb := make([]byte, need)
		copy(nb, s.buf[:s.carry])
		s.buf = nb
	}
	s.buf = s.buf[:need]

	n, err := s.dec.Read(s.buf[s.carry:])
	total := s.carry + n
	whole := total - total%mp3BytesPerFrame
	for i := 0; i < whole/2; i++ {
		v := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768
	}
	s.carry = copy(s.buf, s.buf[whole:total])

	switch {
	case err == nil:
		return whole / 2, nil
	case errors.Is(err, io.EOF):
		if whole == 0 {
			return 0, io.EOF
		}
		return whole / 2, nil
	default:
		return whole / 2, fmt.Errorf("%w: %w", ErrDecode, err)
	}
}
