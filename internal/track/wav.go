// SPDX-License-Identifier: MIT
package track

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

type wavDecoder struct{}

func (wavDecoder) Decode(rs io.ReadSeeker) (Source, error) {
	tag, err := wavFormatTag(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrUnsupportedFormat)
	}
	switch {
	case tag == wavFormatPCM:
		return newIntSource(dec, dec.Format(), int(dec.BitDepth), true), nil
	case tag == wavFormatIEEEFloat && dec.BitDepth == 32:
		src := newIntSource(dec, dec.Format(), 32, false)
		src.ieee = true
		return src, nil
	default:
		return nil, fmt.Errorf("%w: wav format 0x%04x at %d bits", ErrUnsupportedFormat, tag, dec.BitDepth)
	}
}

// wavFormatTag returns the sample encoding from the fmt chunk. For
// WAVE_FORMAT_EXTENSIBLE it is the first two bytes of the sub-format GUID.
// The reader is left mid-file.
func wavFormatTag(r io.Reader) (uint16, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	if p.Format != riff.WavFormatID {
		return 0, errors.New("not a WAVE container")
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("no fmt chunk")
			}
			return 0, err
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		var hdr struct {
			Tag        uint16
			Channels   uint16
			SampleRate uint32
			ByteRate   uint32
			BlockAlign uint16
			Bits       uint16
		}
		if err := ch.ReadLE(&hdr); err != nil {
			return 0, err
		}
		if hdr.Tag != wavFormatExtensible {
			return hdr.Tag, nil
		}
		var ext struct {
			Size        uint16
			ValidBits   uint16
			ChannelMask uint32
			SubFormat   uint16
		}
		if ch.Size < 16+binary.Size(ext) {
			return 0, errors.New("short extensible fmt chunk")
		}
		if err := ch.ReadLE(&ext); err != nil {
			return 0, err
		}
		return ext.SubFormat, nil
	}
}
