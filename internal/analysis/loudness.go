// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
)

// ITU-R BS.1770 constants.
const (
	// LoudnessFloor is the absolute gate in LUFS. Quieter blocks read as
	// the floor.
	LoudnessFloor = -70.0

	loudnessOffset   = -0.691
	momentaryBlocks  = 4                  // 400 ms window
	momentaryBlockMs = 100                // energy block length
	preFilterF0      = 1681.974450955533  // high shelf centre, Hz
	preFilterGainDB  = 3.999843853973347  // high shelf gain
	preFilterQ       = 0.7071752369554196 // high shelf Q
	rlbF0            = 38.13547087602444  // RLB high-pass corner, Hz
	rlbQ             = 0.5003270373238773 // RLB high-pass Q
	shelfVbExponent  = 0.4996667741545416
)

// biquad is a second order IIR section in transposed direct form II with
// a0 normalised to 1.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (f *biquad) step(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// kWeighting returns the two K-weighting stages with coefficients derived
// for rate, so that any device rate is supported.
func kWeighting(rate float64) (shelf, highpass biquad) {
	k := math.Tan(math.Pi * preFilterF0 / rate)
	vh := math.Pow(10, preFilterGainDB/20)
	vb := math.Pow(vh, shelfVbExponent)
	a0 := 1 + k/preFilterQ + k*k
	shelf = biquad{
		b0: (vh + vb*k/preFilterQ + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/preFilterQ + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/preFilterQ + k*k) / a0,
	}

	k = math.Tan(math.Pi * rlbF0 / rate)
	a0 = 1 + k/rlbQ + k*k
	highpass = biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/rlbQ + k*k) / a0,
	}
	return shelf, highpass
}

// Loudness accumulates K-weighted energy in 100 ms blocks and reports the
// momentary loudness over the last four. Channel weights are 1, as for
// front channels.
type Loudness struct {
	channels  int
	blockLen  int
	shelf     []biquad
	highpass  []biquad
	acc       []float64 // energy of the block being filled, per channel
	filled    int       // frames in the block being filled
	blocks    [momentaryBlocks]float64
	nblocks   int
	nextBlock int
	momentary float64
}

// NewLoudness returns a meter for interleaved audio at rate Hz.
func NewLoudness(rate, channels int) *Loudness {
	shelf, hp := kWeighting(float64(rate))
	l := &Loudness{
		channels:  channels,
		blockLen:  max(1, int(math.Round(float64(rate)*momentaryBlockMs/1000))),
		shelf:     make([]biquad, channels),
		highpass:  make([]biquad, channels),
		acc:       make([]float64, channels),
		momentary: LoudnessFloor,
	}
	for c := range channels {
		l.shelf[c] = shelf
		l.highpass[c] = hp
	}
	return l
}

// Process filters whole frames from samples and closes blocks as they
// fill.
func (l *Loudness) Process(samples []float32) {
	frames := len(samples) / l.channels
	for i := range frames {
		frame := samples[i*l.channels : (i+1)*l.channels]
		for c, x := range frame {
			y := l.highpass[c].step(l.shelf[c].step(float64(x)))
			l.acc[c] += y * y
		}
		l.filled++
		if l.filled == l.blockLen {
			l.closeBlock()
		}
	}
}

func (l *Loudness) closeBlock() {
	var sum float64
	for c := range l.acc {
		sum += l.acc[c] / float64(l.blockLen)
		l.acc[c] = 0
	}
	l.filled = 0
	l.blocks[l.nextBlock] = sum
	l.nextBlock = (l.nextBlock + 1) % momentaryBlocks
	if l.nblocks < momentaryBlocks {
		l.nblocks++
	}

	var z float64
	for _, b := range l.blocks[:l.nblocks] {
		z += b
	}
	l.momentary = energyToLUFS(z / float64(l.nblocks))
}

// Momentary returns the loudness of the last 400 ms in LUFS, or the
// average of the blocks seen so far before that. It never reads below
// LoudnessFloor.
func (l *Loudness) Momentary() float64 {
	return l.momentary
}

func energyToLUFS(z float64) float64 {
	if z <= 0 {
		return LoudnessFloor
	}
	return max(loudnessOffset+10*math.Log10(z), LoudnessFloor)
}
