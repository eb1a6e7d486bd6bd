// SPDX-License-Identifier: MIT

// Package audio plays decoded tracks through an output device and taps the
// same samples for level analysis.
//
// A Session owns three execution contexts: the caller, one decode worker
// goroutine and the device callback thread. They share data only through
// the command queue and two single-producer single-consumer rings.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zthompson47/time2freq/internal/analysis"
	"github.com/zthompson47/time2freq/internal/config"
	applog "github.com/zthompson47/time2freq/internal/log"
	"github.com/zthompson47/time2freq/internal/resample"
	"github.com/zthompson47/time2freq/internal/ringbuf"
)

var log = applog.For("audio")

// Stats is a snapshot of session counters. Frame counts are device frames,
// sample counts are interleaved samples.
type Stats struct {
	FramesPlayed    uint64
	SilentFrames    uint64
	Underruns       uint64
	SamplesPushed   uint64
	TapDropped      uint64
	DecodeErrors    uint64
	TracksStarted   uint64
	TracksFailed    uint64
	TracksCompleted uint64
}

// Option configures a Session.
type Option func(*Session)

// WithBackend replaces the PortAudio backend.
func WithBackend(b Backend) Option {
	return func(s *Session) { s.backend = b }
}

// WithTrackOpener replaces the file decoder.
func WithTrackOpener(o TrackOpener) Option {
	return func(s *Session) { s.opener = o }
}

// Session is one playback configuration. Changing the device, rate,
// channels or latency means closing it and building a new one.
type Session struct {
	cfg      config.Config
	backend  Backend
	opener   TrackOpener
	queue    *commandQueue
	playback *ringbuf.Ring[float32]
	tap      *ringbuf.Ring[float32]
	sink     *Sink
	worker   *Worker
	analyzer analysis.LevelProvider
	recorder *Recorder
	stream   Stream

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewSession validates cfg, opens the output stream and starts the worker.
// Failure to open the device is returned wrapping ErrDeviceUnavailable.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interp, err := resample.ParseInterpolation(cfg.Resampler.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	kernel := resample.KernelConfig{
		SincLen:       cfg.Resampler.SincLen,
		Oversampling:  cfg.Resampler.Oversampling,
		Cutoff:        cfg.Resampler.Cutoff,
		Window:        cfg.Resampler.Window,
		Interpolation: interp,
	}
	if err := kernel.Validate(cfg.Audio.ChunkFrames); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     *cfg,
		backend: PortAudioBackend{},
		opener:  FileOpener(cfg.Decoder.MaxConsecutiveErrors),
		queue:   newCommandQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ch := cfg.Audio.Channels
	s.playback = ringbuf.New[float32](cfg.RingCapacity())
	s.tap = ringbuf.New[float32](cfg.RingCapacity())
	s.sink = NewSink(s.playback, ch)
	s.analyzer, err = analysis.NewAnalyzer(s.tap, cfg.Audio.SampleRate, ch)
	if err != nil {
		return nil, err
	}

	// Start-up headroom, so the first callbacks never find the ring empty.
	s.playback.Push(make([]float32, cfg.LatencyFrames()*ch))

	if cfg.Recording.Enabled {
		s.recorder, err = NewRecorder(cfg.Recording.OutputDir, cfg.Audio.SampleRate, ch, cfg.Recording.BitDepth)
		if err != nil {
			return nil, err
		}
		log.Infof("recording to %s", s.recorder.Path())
	}

	s.stream, err = s.backend.OpenOutput(StreamParams{
		DeviceID:        cfg.Audio.OutputDevice,
		Channels:        ch,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, s.sink.Process)
	if err != nil {
		return nil, errors.Join(err, s.closeRecorder())
	}

	s.worker = newWorker(WorkerConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    ch,
		ChunkFrames: cfg.Audio.ChunkFrames,
		Kernel:      kernel,
		Backoff:     cfg.BackoffInterval(),
	}, s.queue, s.playback, s.tap, s.opener, s.sink)
	s.worker.recorder = s.recorder

	if err := s.stream.Start(); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), s.stream.Close(), s.closeRecorder())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.worker.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.watchdog(ctx, cfg.Meter.WatchdogInterval)
	}()

	log.Infof("session started: %d Hz, %d ch, latency %s, ring %d samples",
		cfg.Audio.SampleRate, ch, cfg.Latency(), cfg.RingCapacity())
	return s, nil
}

// Play asks the worker to stop whatever it is playing and start path. It
// never blocks. Problems with the file are logged, not returned.
func (s *Session) Play(path string) {
	s.queue.Push(Command{Path: path})
}

// SampleLevel drains the analysis tap and returns the current level. It is
// meant for a single polling goroutine.
func (s *Session) SampleLevel(elapsed time.Duration) analysis.Level {
	return s.analyzer.Sample(elapsed)
}

// Idle reports whether no track is playing and none is queued.
func (s *Session) Idle() bool {
	return s.queue.Len() == 0 && s.worker.State() == StateIdle
}

// Buffered returns the frames queued for the device that it has not played
// yet. Safe to call from any goroutine.
func (s *Session) Buffered() int {
	return s.playback.Len() / s.cfg.Audio.Channels
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	w := s.worker
	return Stats{
		FramesPlayed:    s.sink.FramesPlayed(),
		SilentFrames:    s.sink.SilentFrames(),
		Underruns:       s.sink.Underruns(),
		SamplesPushed:   w.samplesPushed.Load(),
		TapDropped:      w.tapDropped.Load(),
		DecodeErrors:    w.decodeErrors.Load(),
		TracksStarted:   w.tracksStarted.Load(),
		TracksFailed:    w.tracksFailed.Load(),
		TracksCompleted: w.tracksCompleted.Load(),
	}
}

// Config returns the configuration the session was built with.
func (s *Session) Config() config.Config { return s.cfg }

// watchdog logs underruns as they accumulate.
func (s *Session) watchdog(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.sink.Underruns()
			if n > last {
				log.Warnf("underrun: %d silent frames during playback in the last %s (%d total)", n-last, interval, n)
			}
			last = n
		}
	}
}

// Close stops the worker and the stream and finalizes any recording. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.closeErr = errors.Join(s.stream.Stop(), s.stream.Close(), s.closeRecorder())
		st := s.Stats()
		log.Infof("session closed: %d frames played, %d underruns, %d tracks (%d failed)",
			st.FramesPlayed, st.Underruns, st.TracksStarted, st.TracksFailed)
	})
	return s.closeErr
}

func (s *Session) closeRecorder() error {
	if s.recorder == nil {
		return nil
	}
	err := s.recorder.Close()
	if err == nil {
		log.Infof("recorded %d frames to %s", s.recorder.Frames(), s.recorder.Path())
	}
	s.recorder = nil
	return err
}
