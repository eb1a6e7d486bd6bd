// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"Nil", nil},
		{"Slice", []float32{0.1, 0.2}},
		{"Struct", struct{ A int }{1}},
	}

	mt := &MockTransport{}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mt.Send(tt.input); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			_, count := mt.Snapshot()
			if count != i+1 {
				t.Errorf("Count = %d, want %d", count, i+1)
			}
		})
	}
	mt.Close()
	if !mt.Closed {
		t.Error("Close() did not mark transport closed")
	}
}

func TestSineInterleaved(t *testing.T) {
	const frames, rate, freq = 44100, 44100.0, 441.0
	s := SineInterleaved(frames, 2, rate, freq, 0.5)
	if len(s) != 2*frames {
		t.Fatalf("len = %d, want %d", len(s), 2*frames)
	}

	var sum float64
	crossings := 0
	for i := 0; i < frames; i++ {
		l, r := s[2*i], s[2*i+1]
		if l != r {
			t.Fatalf("frame %d: channels differ (%v, %v)", i, l, r)
		}
		sum += float64(l) * float64(l)
		if i > 0 && (s[2*(i-1)] < 0) != (l < 0) {
			crossings++
		}
	}
	rms := math.Sqrt(sum / frames)
	if math.Abs(rms-0.5/math.Sqrt2) > 1e-3 {
		t.Errorf("rms = %f, want %f", rms, 0.5/math.Sqrt2)
	}
	// Two crossings per cycle.
	if math.Abs(float64(crossings)-2*freq) > 4 {
		t.Errorf("zero crossings = %d, want about %d", crossings, int(2*freq))
	}
}

func TestWhiteNoise(t *testing.T) {
	a := WhiteNoise(10000, 0.8, 7)
	b := WhiteNoise(10000, 0.8, 7)
	var mean float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same seed produced different noise")
		}
		if a[i] < -0.8 || a[i] > 0.8 {
			t.Fatalf("sample %d = %v outside amplitude", i, a[i])
		}
		mean += float64(a[i])
	}
	if mean /= float64(len(a)); math.Abs(mean) > 0.02 {
		t.Errorf("mean = %f, want about 0", mean)
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sine.wav")
	samples := SineInterleaved(4410, 2, 44100, 1000, 0.5)
	if err := WriteWAV(path, samples, 44100, 2, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("fixture is not a valid wav file")
	}
	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func BenchmarkSineInterleaved(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		SineInterleaved(1024, 2, 48000, 440, 0.5)
	}
}
