// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/zthompson47/time2freq/internal/ringbuf"
	"github.com/zthompson47/time2freq/pkg/utils"
)

func TestMomentaryLoudness(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
		amp      float32
		freq     float64
		want     float64
	}{
		{"stereo half scale 48k", 48000, 2, 0.5, 1000, -6.02},
		{"stereo half scale 44.1k", 44100, 2, 0.5, 1000, -6.02},
		{"mono full scale", 48000, 1, 1.0, 1000, -3.01},
		{"mono -20 dBFS", 48000, 1, 0.1, 1000, -23.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoudness(tt.rate, tt.channels)
			l.Process(utils.SineInterleaved(tt.rate, tt.channels, float64(tt.rate), tt.freq, tt.amp))
			if got := l.Momentary(); math.Abs(got-tt.want) > 0.1 {
				t.Errorf("Momentary() = %.2f LUFS, want %.2f", got, tt.want)
			}
		})
	}
}

func TestLoudnessFloor(t *testing.T) {
	l := NewLoudness(48000, 2)
	if got := l.Momentary(); got != LoudnessFloor {
		t.Errorf("fresh meter = %v, want floor", got)
	}
	l.Process(make([]float32, 2*48000))
	if got := l.Momentary(); got != LoudnessFloor {
		t.Errorf("silence = %v, want %v", got, LoudnessFloor)
	}
	l.Process(utils.SineInterleaved(48000, 2, 48000, 1000, 1e-5))
	if got := l.Momentary(); got != LoudnessFloor {
		t.Errorf("-100 dBFS tone = %v, want floor", got)
	}
}

func TestKWeightingResponse(t *testing.T) {
	// The shelf lifts high frequencies by about 4 dB while the RLB stage
	// removes the lowest octave.
	tests := []struct {
		freq     float64
		min, max float64
	}{
		{20, -30, -10},
		{1000, -0.1, 1.5},
		{10000, 3, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%gHz", tt.freq), func(t *testing.T) {
			shelf, hp := kWeighting(48000)
			in := utils.SineInterleaved(48000, 1, 48000, tt.freq, 1)
			var inE, outE float64
			for i, x := range in {
				y := hp.step(shelf.step(float64(x)))
				if i >= 24000 {
					inE += float64(x) * float64(x)
					outE += y * y
				}
			}
			gain := 10 * math.Log10(outE/inE)
			if gain < tt.min || gain > tt.max {
				t.Errorf("gain = %.2f dB, want [%g, %g]", gain, tt.min, tt.max)
			}
		})
	}
}

func TestAnalyzerRMS(t *testing.T) {
	const rate = 48000
	ring := ringbuf.New[float32](2 * rate)
	a, err := NewAnalyzer(ring, rate, 2)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	ring.Push(utils.SineInterleaved(rate/2, 2, rate, 1000, 0.5))
	lvl := a.Sample(100 * time.Millisecond)
	for c, v := range lvl.RMS {
		if math.Abs(float64(v)-0.5/math.Sqrt2) > 0.01 {
			t.Errorf("RMS[%d] = %v, want %v", c, v, 0.5/math.Sqrt2)
		}
	}
	if got := ring.Len(); got != 2*(rate/2-rate/10) {
		t.Errorf("ring holds %d samples after draining 100ms, want %d", got, 2*(rate/2-rate/10))
	}
}

func TestAnalyzerKeepsSnapshotWhenIdle(t *testing.T) {
	ring := ringbuf.New[float32](4800)
	a, _ := NewAnalyzer(ring, 48000, 2)

	if got := a.Sample(0); got != Silent {
		t.Errorf("first poll = %+v, want Silent", got)
	}

	ring.Push(utils.SineInterleaved(1000, 2, 48000, 500, 0.25))
	first := a.Sample(50 * time.Millisecond)
	if first.RMS[0] == 0 {
		t.Fatal("expected a non-zero level")
	}
	if got := a.Sample(0); got != first {
		t.Errorf("zero-dt poll = %+v, want previous %+v", got, first)
	}
	if got := a.Sample(time.Second); got != first {
		t.Errorf("poll of empty ring = %+v, want previous %+v", got, first)
	}
	if a.Last() != first {
		t.Errorf("Last() = %+v, want %+v", a.Last(), first)
	}
}

func TestAnalyzerMono(t *testing.T) {
	ring := ringbuf.New[float32](4410)
	a, err := NewAnalyzer(ring, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	ring.Push(utils.SineInterleaved(4410, 1, 44100, 441, 0.5))
	lvl := a.Sample(100 * time.Millisecond)
	if lvl.RMS[0] != lvl.RMS[1] {
		t.Errorf("mono RMS differs between slots: %v", lvl.RMS)
	}
}

func TestAnalyzerDrainBoundedByCapacity(t *testing.T) {
	ring := ringbuf.New[float32](960)
	a, _ := NewAnalyzer(ring, 48000, 2)
	ring.Push(make([]float32, 960))
	a.Sample(10 * time.Second)
	if ring.Len() != 0 {
		t.Errorf("ring not drained: %d left", ring.Len())
	}
}

func TestNewAnalyzerErrors(t *testing.T) {
	ring := ringbuf.New[float32](16)
	tests := []struct {
		name     string
		src      Source
		rate, ch int
	}{
		{"nil source", nil, 48000, 2},
		{"three channels", ring, 48000, 3},
		{"zero rate", ring, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAnalyzer(tt.src, tt.rate, tt.ch); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAnalyzerZeroAllocations(t *testing.T) {
	ring := ringbuf.New[float32](9600)
	a, _ := NewAnalyzer(ring, 48000, 2)
	block := utils.SineInterleaved(1600, 2, 48000, 1000, 0.5)
	allocs := testing.AllocsPerRun(100, func() {
		ring.Push(block)
		a.Sample(33 * time.Millisecond)
	})
	if allocs != 0 {
		t.Errorf("Sample allocated %.1f times per run", allocs)
	}
}

func BenchmarkAnalyzerSample(b *testing.B) {
	ring := ringbuf.New[float32](9600)
	a, _ := NewAnalyzer(ring, 48000, 2)
	block := utils.SineInterleaved(1600, 2, 48000, 1000, 0.5)
	b.ReportAllocs()
	for b.Loop() {
		ring.Push(block)
		a.Sample(33 * time.Millisecond)
	}
}
