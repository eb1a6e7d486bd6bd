// SPDX-License-Identifier: MIT
package resample

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// sincConverter keeps a planar window per channel: SincLen frames of
// history followed by one chunk. Positions are tracked as exact integer
// ratios so long tracks do not drift.
type sincConverter struct {
	k      *kernel
	interp Interpolation

	inRate, outRate int64
	channels        int
	chunk           int

	pending []float32   // interleaved input not yet forming a full chunk
	planar  [][]float64 // [channel][sincLen + chunk]
	out     []float32

	chunkStart int64 // absolute input frame at planar index sincLen
	nextOut    int64 // absolute index of the next output frame
	spent      bool
}

func newSinc(inRate, outRate, channels, chunk int, cfg KernelConfig) *sincConverter {
	cutoff := cfg.Cutoff
	if outRate < inRate {
		cutoff *= float64(outRate) / float64(inRate)
	}
	k := kernelFor(cfg, cutoff)

	planar := make([][]float64, channels)
	for c := range planar {
		planar[c] = make([]float64, k.sincLen+chunk)
	}
	perChunk := int(math.Ceil(float64(chunk)*float64(outRate)/float64(inRate))) + 1

	return &sincConverter{
		k:        k,
		interp:   cfg.Interpolation,
		inRate:   int64(inRate),
		outRate:  int64(outRate),
		channels: channels,
		chunk:    chunk,
		pending:  make([]float32, 0, 2*chunk*channels),
		planar:   planar,
		out:      make([]float32, 0, perChunk*channels),
	}
}

func (s *sincConverter) Process(in []float32) []float32 {
	if s.spent {
		return nil
	}
	s.pending = append(s.pending, in...)
	s.out = s.out[:0]

	need := s.chunk * s.channels
	used := 0
	for len(s.pending)-used >= need {
		s.runChunk(s.pending[used:used+need], -1)
		used += need
	}
	if used > 0 {
		n := copy(s.pending, s.pending[used:])
		s.pending = s.pending[:n]
	}

	if len(s.out) == 0 {
		return nil
	}
	return s.out
}

func (s *sincConverter) Flush() []float32 {
	if s.spent {
		return nil
	}
	s.spent = true
	s.out = s.out[:0]

	// Every output whose time lies before the end of the real input.
	end := s.chunkStart + int64(len(s.pending)/s.channels)
	need := s.chunk * s.channels
	for s.nextOut*s.inRate < end*s.outRate {
		for len(s.pending) < need {
			s.pending = append(s.pending, 0)
		}
		s.runChunk(s.pending[:need], end)
		s.pending = s.pending[:0]
	}

	if len(s.out) == 0 {
		return nil
	}
	return s.out
}

// runChunk loads one interleaved chunk, emits every output frame whose
// taps are now available and slides the history window. A non-negative
// end limits output to times before that input frame.
func (s *sincConverter) runChunk(chunk []float32, end int64) {
	L := s.k.sincLen
	for c, buf := range s.planar {
		dst := buf[L:]
		for i := range dst {
			dst[i] = float64(chunk[i*s.channels+c])
		}
	}

	half := int64(L / 2)
	last := s.chunkStart + int64(s.chunk) - 1
	over := int64(s.k.over)
	for {
		if end >= 0 && s.nextOut*s.inRate >= end*s.outRate {
			break
		}
		pos := s.nextOut * s.inRate
		j0 := pos / s.outRate
		if j0+half > last {
			break
		}
		// Phase in units of 1/(over*outRate) of an input period.
		rem := (pos % s.outRate) * over
		p := rem / s.outRate
		t := float64(rem%s.outRate) / float64(s.outRate)

		base := int(j0 - half + 1 - s.chunkStart + int64(L))
		for _, buf := range s.planar {
			x := buf[base : base+L]
			var y float64
			switch {
			case s.interp == Nearest:
				np := p
				if t >= 0.5 {
					np++
				}
				y = floats.Dot(s.k.sub[np], x)
			case t == 0:
				y = floats.Dot(s.k.sub[p], x)
			default:
				y = (1-t)*floats.Dot(s.k.sub[p], x) + t*floats.Dot(s.k.sub[p+1], x)
			}
			s.out = append(s.out, float32(y))
		}
		s.nextOut++
	}

	for _, buf := range s.planar {
		copy(buf[:L], buf[s.chunk:s.chunk+L])
	}
	s.chunkStart += int64(s.chunk)
}
