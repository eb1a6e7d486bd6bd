// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrDeviceUnavailable is returned when the output device is missing, has
// too few channels or refuses to open.
var ErrDeviceUnavailable = errors.New("output device unavailable")

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowOutputLatency  time.Duration
	HighOutputLatency time.Duration
}

// StreamParams describes the output stream a session needs.
type StreamParams struct {
	DeviceID        int
	Channels        int
	SampleRate      int
	FramesPerBuffer int
}

// Stream is a running output stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend opens output streams whose callback receives interleaved float32
// buffers to fill.
type Backend interface {
	OpenOutput(p StreamParams, process func(out []float32)) (Stream, error)
}

// PortAudioBackend opens streams through PortAudio. Each stream holds its
// own Initialize/Terminate pair.
type PortAudioBackend struct{}

// paOpenStream is replaceable in tests.
var paOpenStream = func(p portaudio.StreamParameters, process func(out []float32)) (Stream, error) {
	return portaudio.OpenStream(p, process)
}

func (PortAudioBackend) OpenOutput(p StreamParams, process func(out []float32)) (Stream, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	device, err := OutputDevice(p.DeviceID, p.Channels)
	if err != nil {
		Terminate()
		return nil, err
	}

	log.Infof("opening %q (%d ch, %d Hz, %d frames per buffer, latency %s)",
		device.Name, p.Channels, p.SampleRate, p.FramesPerBuffer, device.DefaultLowOutputLatency)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.Channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: p.FramesPerBuffer,
	}
	stream, err := paOpenStream(params, process)
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return &paStream{Stream: stream}, nil
}

// paStream terminates PortAudio once its stream is closed.
type paStream struct {
	Stream
	once sync.Once
}

func (s *paStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(func() {
		err = errors.Join(err, Terminate())
	})
	return err
}

var _ Backend = PortAudioBackend{}
