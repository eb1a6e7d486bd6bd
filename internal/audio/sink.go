// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"

	"github.com/zthompson47/time2freq/internal/ringbuf"
)

// Sink is the device side of the playback ring. Process runs on the audio
// subsystem's real-time thread.
//
// Every frame that cannot be popped is zero-filled and counted as silent.
// It is also counted as an underrun only while the sink is armed. A
// standalone sink starts armed, so each empty pop is an underrun. Inside a
// Session the worker owns the switch: it arms the sink when a track first
// pushes and disarms it whenever it waits idle or abandons a track, so the
// silence of an idle session is not reported as underruns.
//
// Performance Critical:
//   - No allocations, locks, logging or blocking calls
//   - Counters are published with one atomic add per callback
type Sink struct {
	ring     *ringbuf.Ring[float32]
	channels int

	// armed is set while a track is feeding the ring. An empty ring is only
	// an underrun when armed; otherwise it is ordinary silence.
	armed atomic.Bool

	framesPlayed atomic.Uint64
	silentFrames atomic.Uint64
	underruns    atomic.Uint64
}

// NewSink returns a sink reading frames of channels samples from ring. It
// starts armed.
func NewSink(ring *ringbuf.Ring[float32], channels int) *Sink {
	s := &Sink{ring: ring, channels: channels}
	s.armed.Store(true)
	return s
}

// Process fills out, one interleaved frame at a time. A frame that cannot
// be popped whole is written as silence.
func (s *Sink) Process(out []float32) {
	var played, silent uint64
	ch := s.channels
	for i := 0; i+ch <= len(out); i += ch {
		frame := out[i : i+ch]
		if s.ring.TryPopChunk(frame) {
			played++
			continue
		}
		clear(frame)
		silent++
	}
	// Trailing partial frame, never expected from PortAudio.
	if rem := len(out) % ch; rem != 0 {
		clear(out[len(out)-rem:])
	}

	s.framesPlayed.Add(played)
	if silent > 0 {
		s.silentFrames.Add(silent)
		if s.armed.Load() {
			s.underruns.Add(silent)
		}
	}
}

// SetArmed switches underrun accounting on or off.
func (s *Sink) SetArmed(armed bool) {
	s.armed.Store(armed)
}

// Armed reports whether empty pops count as underruns.
func (s *Sink) Armed() bool { return s.armed.Load() }

// FramesPlayed returns frames delivered from the ring.
func (s *Sink) FramesPlayed() uint64 { return s.framesPlayed.Load() }

// SilentFrames returns frames zero-filled for any reason.
func (s *Sink) SilentFrames() uint64 { return s.silentFrames.Load() }

// Underruns returns frames zero-filled while a track was playing.
func (s *Sink) Underruns() uint64 { return s.underruns.Load() }
