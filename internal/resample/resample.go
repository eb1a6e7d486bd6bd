// SPDX-License-Identifier: MIT

/*
Package resample converts interleaved float32 audio between sample rates
with a band-limited windowed sinc kernel.

Input is consumed in fixed chunks of chunkFrames frames, which bounds both
the working set and the latency the converter adds to one chunk. Output is
time-aligned with the input: output frame n is the input signal evaluated
at time n*inRate/outRate input frames, so the converter holds back
SincLen/2 frames of lookahead and releases them on Flush.

	conv, err := resample.New(44100, 48000, 2, 1024, resample.DefaultKernelConfig())
	...
	for block := range blocks {
		push(conv.Process(block))
	}
	push(conv.Flush())

Equal rates yield a pass-through converter with no kernel at all.
*/
package resample

import (
	"fmt"
)

// Converter turns input blocks into output blocks at another rate. The
// returned slices are owned by the converter and valid until the next call.
type Converter interface {
	// Process accepts interleaved input and returns whatever output is
	// ready, or nil.
	Process(in []float32) []float32
	// Flush pads the stream with silence and returns the remaining output
	// frames that correspond to real input. The converter is spent
	// afterwards.
	Flush() []float32
}

// New returns a converter from inRate to outRate.
func New(inRate, outRate, channels, chunkFrames int, cfg KernelConfig) (Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %d Hz -> %d Hz", ErrInvalidRate, inRate, outRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("resampler needs at least one channel, got %d", channels)
	}
	if inRate == outRate {
		return passthrough{}, nil
	}
	if err := cfg.Validate(chunkFrames); err != nil {
		return nil, err
	}
	return newSinc(inRate, outRate, channels, chunkFrames, cfg), nil
}

// passthrough hands input straight back.
type passthrough struct{}

func (passthrough) Process(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}
	return in
}

func (passthrough) Flush() []float32 { return nil }

var (
	_ Converter = passthrough{}
	_ Converter = (*sincConverter)(nil)
)
