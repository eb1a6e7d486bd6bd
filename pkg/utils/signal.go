// SPDX-License-Identifier: MIT

// Package utils holds signal generators and fixtures shared by tests.
package utils

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MockTransport records what it is sent instead of transmitting.
type MockTransport struct {
	mu       sync.Mutex
	LastData any
	Count    int
	Closed   bool
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastData = data
	m.Count++
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Snapshot returns the last payload and the number of sends.
func (m *MockTransport) Snapshot() (any, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastData, m.Count
}

// SineInterleaved returns frames of an interleaved sine at freq Hz with the
// same phase on every channel.
func SineInterleaved(frames, channels int, sampleRate, freq float64, amp float32) []float32 {
	out := make([]float32, frames*channels)
	for i := range frames {
		v := amp * float32(math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		for c := range channels {
			out[i*channels+c] = v
		}
	}
	return out
}

// WhiteNoise returns n uniform samples in [-amp, amp] from a seeded PCG so
// that test runs are repeatable.
func WhiteNoise(n int, amp float32, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * (2*rng.Float32() - 1)
	}
	return out
}

// WriteWAV encodes interleaved samples as integer PCM.
func WriteWAV(path string, samples []float32, sampleRate, channels, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav fixture: %w", err)
	}
	defer f.Close()

	full := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(s) * full))
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav fixture: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav fixture: %w", err)
	}
	return nil
}
