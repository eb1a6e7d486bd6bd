// SPDX-License-Identifier: MIT
package track

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format names used as registry keys.
const (
	FormatWAV    = "wav"
	FormatAIFF   = "aiff"
	FormatMP3    = "mp3"
	FormatVorbis = "vorbis"
	FormatFLAC   = "flac"
)

// probeSize is how many leading bytes Probe needs.
const probeSize = 12

// Probe identifies the container from its leading bytes and falls back to
// the file extension. It returns "" when neither is recognised.
func Probe(header []byte, path string) string {
	if f := sniff(header); f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".aif", ".aiff", ".aifc":
		return FormatAIFF
	case ".mp3":
		return FormatMP3
	case ".ogg", ".oga":
		return FormatVorbis
	case ".flac":
		return FormatFLAC
	}
	return ""
}

func sniff(h []byte) string {
	switch {
	case len(h) >= 12 && bytes.Equal(h[0:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WAVE")):
		return FormatWAV
	case len(h) >= 12 && bytes.Equal(h[0:4], []byte("FORM")) &&
		(bytes.Equal(h[8:12], []byte("AIFF")) || bytes.Equal(h[8:12], []byte("AIFC"))):
		return FormatAIFF
	case bytes.HasPrefix(h, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(h, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(h, []byte("ID3")):
		return FormatMP3
	case len(h) >= 2 && h[0] == 0xFF && h[1]&0xE0 == 0xE0:
		// MPEG audio frame sync: eleven set bits.
		return FormatMP3
	}
	return ""
}
