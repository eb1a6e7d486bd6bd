// SPDX-License-Identifier: MIT

/*
Package analysis computes the level snapshot shown to users: per-channel RMS
over the audio heard since the last poll and EBU R128 momentary loudness.

The Analyzer is the consumer of the analysis ring. It is polled at UI
cadence rather than clocked by the device, so each poll drains however much
audio corresponds to the elapsed time, bounded by what the ring holds.
*/
package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/chewxy/math32"
)

// Level is one snapshot. RMS holds left and right; mono sources report the
// same value twice. Loudness is momentary loudness in LUFS.
type Level struct {
	RMS      [2]float32 `json:"rms"`
	Loudness float32    `json:"loudness"`
}

// Silent is the snapshot before any audio has been analysed.
var Silent = Level{Loudness: LoudnessFloor}

// Analyzer drains a Source and keeps the latest Level.
type Analyzer struct {
	src        Source
	sampleRate int
	channels   int
	scratch    []float32
	loudness   *Loudness
	last       Level
}

// NewAnalyzer returns an analyzer for a ring carrying interleaved audio at
// sampleRate with one or two channels.
func NewAnalyzer(src Source, sampleRate, channels int) (*Analyzer, error) {
	if src == nil {
		return nil, fmt.Errorf("analyzer source cannot be nil")
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("analyzer supports 1 or 2 channels, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	frames := src.Cap() / channels
	return &Analyzer{
		src:        src,
		sampleRate: sampleRate,
		channels:   channels,
		scratch:    make([]float32, frames*channels),
		loudness:   NewLoudness(sampleRate, channels),
		last:       Silent,
	}, nil
}

// Sample drains up to round(elapsed * rate) frames. With nothing to drain
// it returns the previous snapshot unchanged.
func (a *Analyzer) Sample(elapsed time.Duration) Level {
	want := int(math.Round(elapsed.Seconds() * float64(a.sampleRate)))
	want = min(max(want, 0), len(a.scratch)/a.channels)
	if want == 0 {
		return a.last
	}

	n := a.src.Pop(a.scratch[:want*a.channels])
	n -= n % a.channels
	if n == 0 {
		return a.last
	}
	window := a.scratch[:n]

	a.loudness.Process(window)
	a.last = Level{
		RMS:      rms(window, a.channels),
		Loudness: float32(a.loudness.Momentary()),
	}
	return a.last
}

// Last returns the most recent snapshot without draining.
func (a *Analyzer) Last() Level {
	return a.last
}

func rms(samples []float32, channels int) [2]float32 {
	var sum [2]float64
	frames := len(samples) / channels
	for i := range frames {
		for c := range channels {
			x := float64(samples[i*channels+c])
			sum[c] += x * x
		}
	}
	var out [2]float32
	for c := range channels {
		out[c] = math32.Sqrt(float32(sum[c] / float64(frames)))
	}
	if channels == 1 {
		out[1] = out[0]
	}
	return out
}
