// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zthompson47/time2freq/internal/config"
	"github.com/zthompson47/time2freq/pkg/utils"
)

// clockBackend opens streams that call the process callback from a
// goroutine in real time, like a device would.
type clockBackend struct {
	period  time.Duration
	params  StreamParams
	openErr error
}

func (b *clockBackend) OpenOutput(p StreamParams, process func([]float32)) (Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.params = p
	frames := int(time.Duration(p.SampleRate) * b.period / time.Second)
	return &clockStream{
		period:  b.period,
		buf:     make([]float32, frames*p.Channels),
		process: process,
	}, nil
}

type clockStream struct {
	period  time.Duration
	buf     []float32
	process func([]float32)
	stop    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

func (s *clockStream) Start() error {
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.process(s.buf)
			}
		}
	}()
	return nil
}

func (s *clockStream) Stop() error {
	if s.stop != nil {
		close(s.stop)
		s.wg.Wait()
		s.stop = nil
	}
	return nil
}

func (s *clockStream) Close() error {
	s.closed = true
	return nil
}

func testSessionConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestNewSessionDeviceUnavailable(t *testing.T) {
	backend := &clockBackend{openErr: fmt.Errorf("%w: mock", ErrDeviceUnavailable)}
	_, err := NewSession(testSessionConfig(), WithBackend(backend))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("NewSession error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestNewSessionInvalidConfig(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Audio.Channels = 0
	if _, err := NewSession(cfg, WithBackend(&clockBackend{period: 10 * time.Millisecond})); err == nil {
		t.Fatal("expected error for zero channels")
	}

	cfg = testSessionConfig()
	cfg.Resampler.Interpolation = "cubic"
	if _, err := NewSession(cfg, WithBackend(&clockBackend{period: 10 * time.Millisecond})); err == nil {
		t.Fatal("expected error for unknown interpolation")
	}
}

func TestSessionLifecycle(t *testing.T) {
	backend := &clockBackend{period: 10 * time.Millisecond}
	opener := &fakeOpener{readers: map[string]func() *fakeReader{
		"short.wav": func() *fakeReader {
			return &fakeReader{rate: 48000, channels: 2, frames: 480, blocks: 5, value: 0.5}
		},
	}}
	cfg := testSessionConfig()
	cfg.Recording.Enabled = true
	cfg.Recording.OutputDir = t.TempDir()

	s, err := NewSession(cfg, WithBackend(backend), WithTrackOpener(opener))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if backend.params.SampleRate != 48000 || backend.params.Channels != 2 || backend.params.DeviceID != -1 {
		t.Errorf("stream params %+v", backend.params)
	}
	if !s.Idle() {
		t.Error("new session not idle")
	}

	s.Play("short.wav")
	waitFor(t, 2*time.Second, "track to finish", func() bool {
		return s.Stats().TracksCompleted == 1
	})
	s.Play("missing.wav")
	waitFor(t, 2*time.Second, "queue to drain", func() bool {
		return s.Idle() && s.Stats().TracksFailed == 1
	})
	// The pre-fill and the whole track reach the device.
	played := uint64(cfg.LatencyFrames() + 5*480)
	waitFor(t, 2*time.Second, "device callback", func() bool {
		return s.Stats().FramesPlayed >= played
	})

	st := s.Stats()
	if st.TracksStarted != 2 || st.TracksCompleted != 1 || st.TracksFailed != 1 {
		t.Errorf("stats %+v", st)
	}
	if st.Underruns != 0 {
		t.Errorf("%d underruns around a finished track", st.Underruns)
	}

	stream := s.stream.(*clockStream)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !stream.closed {
		t.Error("stream not closed")
	}

	entries, err := os.ReadDir(cfg.Recording.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("recording dir holds %d entries (%v)", len(entries), err)
	}
}

func TestIdleSessionReportsNoUnderruns(t *testing.T) {
	s, err := NewSession(testSessionConfig(),
		WithBackend(&clockBackend{period: 10 * time.Millisecond}),
		WithTrackOpener(&fakeOpener{}))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.Play("missing.wav")
	waitFor(t, 2*time.Second, "failure", func() bool {
		return s.Idle() && s.Stats().TracksFailed == 1
	})
	// Past the pre-fill, so the device is playing silence.
	silent := s.Stats().SilentFrames
	waitFor(t, 2*time.Second, "silent callbacks", func() bool {
		return s.Stats().SilentFrames > silent+4800
	})
	if st := s.Stats(); st.Underruns != 0 {
		t.Errorf("idle session: silent=%d underruns=%d", st.SilentFrames, st.Underruns)
	}
}

// TestSessionSineLevel plays five seconds of a 0.5 amplitude sine at
// 44.1 kHz through a 48 kHz device and polls the level like a meter would.
func TestSessionSineLevel(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time playback")
	}
	path := filepath.Join(t.TempDir(), "sine.wav")
	samples := utils.SineInterleaved(5*44100, 2, 44100, 1000, 0.5)
	if err := utils.WriteWAV(path, samples, 44100, 2, 16); err != nil {
		t.Fatal(err)
	}

	cfg := testSessionConfig()
	cfg.Audio.SampleRate = 48000
	cfg.Audio.LatencyMs = 100
	s, err := NewSession(cfg, WithBackend(&clockBackend{period: 10 * time.Millisecond}))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.Play(path)

	const poll = 33 * time.Millisecond
	start := time.Now()
	last := start
	var steadyUnderruns uint64
	var checked int
	for time.Since(start) < 4500*time.Millisecond {
		time.Sleep(poll)
		now := time.Now()
		level := s.SampleLevel(now.Sub(last))
		last = now

		if now.Sub(start) < time.Second {
			steadyUnderruns = s.Stats().Underruns
			continue
		}
		for c, v := range level.RMS {
			if math.Abs(float64(v)-0.3536) > 0.01 {
				t.Errorf("%s: channel %d RMS = %.4f, want 0.3536", now.Sub(start).Round(time.Millisecond), c, v)
			}
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no steady-state polls")
	}
	if got := s.Stats().Underruns - steadyUnderruns; got != 0 {
		t.Errorf("%d underruns during steady-state playback", got)
	}
	if s.Stats().DecodeErrors != 0 {
		t.Errorf("decode errors: %d", s.Stats().DecodeErrors)
	}
}
