// SPDX-License-Identifier: MIT

// Package track opens audio files and decodes them into interleaved float32
// blocks at the file's native sample rate and channel count.
//
//	r, err := track.Open("song.flac")
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	for {
//		b, err := r.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
package track

import (
	"errors"
	"fmt"
	"io"
	"os"

	applog "github.com/zthompson47/time2freq/internal/log"
)

const (
	// DefaultMaxConsecutiveDecodeErrors is how many packets in a row may
	// fail before the stream is declared corrupt.
	DefaultMaxConsecutiveDecodeErrors = 5
	// DefaultBlockFrames is the frame count requested per Next call.
	DefaultBlockFrames = 1024
	// maxEmptyReads bounds reads that return neither data nor an error.
	maxEmptyReads = 64
)

var log = applog.For("track")

// Block is one run of interleaved samples. Samples is owned by the Reader
// and is only valid until the next call to Next.
type Block struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of whole frames in the block.
func (b Block) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Option configures a Reader.
type Option func(*options)

type options struct {
	maxErrors   int
	blockFrames int
	registry    *Registry
}

// WithMaxConsecutiveErrors sets the decode error tolerance.
func WithMaxConsecutiveErrors(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxErrors = n
		}
	}
}

// WithBlockFrames sets how many frames Next asks the decoder for.
func WithBlockFrames(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockFrames = n
		}
	}
}

// WithRegistry decodes with r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// Reader decodes one track. It is not safe for concurrent use.
type Reader struct {
	src    Source
	closer io.Closer
	format string

	buf         []float32
	maxErrors   int
	consecutive int
	errorsTotal int
	// pending is returned by the next call to Next after a final block.
	pending error
}

// Open probes path and returns a Reader positioned at the first sample.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}
	r, err := NewReader(f, path, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader decodes from rs. name is only used for the extension fallback
// when the leading bytes are not recognised.
func NewReader(rs io.ReadSeeker, name string, opts ...Option) (*Reader, error) {
	o := options{
		maxErrors:   DefaultMaxConsecutiveDecodeErrors,
		blockFrames: DefaultBlockFrames,
		registry:    DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	header := make([]byte, probeSize)
	n, err := io.ReadFull(rs, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}

	format := Probe(header[:n], name)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}
	dec, ok := o.registry.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: no decoder registered for %s", ErrUnsupportedFormat, format)
	}
	src, err := dec.Decode(noClose{rs})
	if err != nil {
		return nil, err
	}
	if src.Channels() <= 0 || src.SampleRate() <= 0 {
		src.Close()
		return nil, fmt.Errorf("%w: %s reports %d channels at %d Hz", ErrNoAudioTrack, format, src.Channels(), src.SampleRate())
	}

	log.Debugf("opened %s: %s, %d Hz, %d channels", name, format, src.SampleRate(), src.Channels())
	return &Reader{
		src:       src,
		format:    format,
		buf:       make([]float32, o.blockFrames*src.Channels()),
		maxErrors: o.maxErrors,
	}, nil
}

// Format returns the registry key of the decoder in use.
func (r *Reader) Format() string { return r.format }

// SampleRate returns the native rate of the track.
func (r *Reader) SampleRate() int { return r.src.SampleRate() }

// Channels returns the native channel count of the track.
func (r *Reader) Channels() int { return r.src.Channels() }

// DecodeErrors returns how many packet errors were absorbed so far.
func (r *Reader) DecodeErrors() int { return r.errorsTotal }

// Next returns the next block of samples or io.EOF at the end of the
// stream. Packet errors are skipped until more than the configured number
// occur in a row, which yields ErrStreamCorrupt.
func (r *Reader) Next() (Block, error) {
	if r.pending != nil {
		return Block{}, r.pending
	}
	empty := 0
	for {
		n, err := r.src.ReadSamples(r.buf)

		if err != nil && errors.Is(err, ErrDecode) {
			r.errorsTotal++
			r.consecutive++
			log.Debugf("skipping bad packet (%d in a row): %v", r.consecutive, err)
			if r.consecutive > r.maxErrors {
				r.pending = fmt.Errorf("%w: %d consecutive decode errors: %w", ErrStreamCorrupt, r.consecutive, err)
				return Block{}, r.pending
			}
			if n > 0 {
				return r.block(n), nil
			}
			continue
		}

		if n > 0 {
			r.consecutive = 0
			if err != nil {
				r.pending = err
			}
			return r.block(n), nil
		}

		switch {
		case errors.Is(err, io.EOF):
			r.pending = io.EOF
			return Block{}, io.EOF
		case err != nil:
			r.pending = fmt.Errorf("failed to read track: %w", err)
			return Block{}, r.pending
		}

		empty++
		if empty > maxEmptyReads {
			r.pending = fmt.Errorf("%w: decoder made no progress", ErrStreamCorrupt)
			return Block{}, r.pending
		}
	}
}

func (r *Reader) block(n int) Block {
	return Block{
		Samples:    r.buf[:n],
		Channels:   r.src.Channels(),
		SampleRate: r.src.SampleRate(),
	}
}

// Close releases the decoder and the underlying file.
func (r *Reader) Close() error {
	err := r.src.Close()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	return err
}
