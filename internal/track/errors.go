// SPDX-License-Identifier: MIT
package track

import "errors"

var (
	// ErrUnsupportedFormat is returned by Open when no registered decoder
	// recognises the file.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoAudioTrack is returned by Open when the container decodes but
	// carries no usable audio stream.
	ErrNoAudioTrack = errors.New("no audio track")

	// ErrDecode marks a recoverable per-packet failure. Sources wrap it;
	// Reader absorbs it.
	ErrDecode = errors.New("decode error")

	// ErrStreamCorrupt is returned by Next once too many packets in a row
	// failed to decode. The track cannot continue.
	ErrStreamCorrupt = errors.New("stream corrupt")
)
