// SPDX-License-Identifier: MIT
package track

import (
	"io"
	"sync"
)

// Source is a decoded PCM stream at its native rate and channel count.
type Source interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels per frame.
	Channels() int
	// ReadSamples fills dst with interleaved float32 samples in [-1, 1] and
	// returns the number of values written, always whole frames. It returns
	// io.EOF once the stream is exhausted and an error wrapping ErrDecode
	// for a packet that could not be decoded.
	ReadSamples(dst []float32) (int, error)
	// Close releases decoder resources. It does not close the input.
	Close() error
}

// Decoder constructs a Source from a seekable input.
type Decoder interface {
	Decode(rs io.ReadSeeker) (Source, error)
}

// Registry maps format names ("wav", "mp3", ...) to decoders.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for format.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

// Get returns the decoder for format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry holding every built-in decoder.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register(FormatWAV, wavDecoder{})
		r.Register(FormatAIFF, aiffDecoder{})
		r.Register(FormatMP3, mp3Decoder{})
		r.Register(FormatVorbis, vorbisDecoder{})
		r.Register(FormatFLAC, flacDecoder{})
		defaultRegistry = r
	})
	return defaultRegistry
}

// noClose hides Close from decoders that would otherwise close the input
// they were handed. The Reader owns the file.
type noClose struct {
	io.ReadSeeker
}
