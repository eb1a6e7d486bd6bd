// SPDX-License-Identifier: MIT
package track

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

type aiffDecoder struct{}

func (aiffDecoder) Decode(rs io.ReadSeeker) (Source, error) {
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid aiff header", ErrUnsupportedFormat)
	}
	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("%w: aiff has no COMM chunk", ErrNoAudioTrack)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: aiff bit depth %d", ErrUnsupportedFormat, dec.BitDepth)
	}
	return newIntSource(dec, format, int(dec.BitDepth), false), nil
}
