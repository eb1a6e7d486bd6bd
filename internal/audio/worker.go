// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	applog "github.com/zthompson47/time2freq/internal/log"
	"github.com/zthompson47/time2freq/internal/resample"
	"github.com/zthompson47/time2freq/internal/ringbuf"
	"github.com/zthompson47/time2freq/internal/track"
)

var wlog = applog.For("worker")

// TrackReader is the part of track.Reader the worker uses.
type TrackReader interface {
	Next() (track.Block, error)
	SampleRate() int
	Channels() int
	DecodeErrors() int
	Close() error
}

// TrackOpener opens a file for decoding.
type TrackOpener interface {
	Open(path string) (TrackReader, error)
}

// TrackOpenerFunc adapts a function to TrackOpener.
type TrackOpenerFunc func(path string) (TrackReader, error)

func (f TrackOpenerFunc) Open(path string) (TrackReader, error) { return f(path) }

// FileOpener decodes files from disk with the built-in decoders.
func FileOpener(maxDecodeErrors int) TrackOpener {
	return TrackOpenerFunc(func(path string) (TrackReader, error) {
		return track.Open(path, track.WithMaxConsecutiveErrors(maxDecodeErrors))
	})
}

// WorkerState is the decode worker's state.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateDecoding
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	default:
		return "unknown"
	}
}

// WorkerConfig fixes the device format the worker produces.
type WorkerConfig struct {
	SampleRate  int
	Channels    int
	ChunkFrames int
	Kernel      resample.KernelConfig
	// Backoff is how long to sleep when the playback ring is full.
	Backoff time.Duration
}

// armer is the sink's underrun switch.
type armer interface {
	SetArmed(bool)
	Armed() bool
}

// Worker decodes and resamples tracks into the playback ring and the
// analysis tap. It runs on one goroutine started with Run.
type Worker struct {
	cfg      WorkerConfig
	queue    *commandQueue
	playback *ringbuf.Ring[float32]
	tap      *ringbuf.Ring[float32]
	opener   TrackOpener
	sink     armer
	recorder *Recorder

	remapBuf []float32
	armed    bool

	state           atomic.Int32
	samplesPushed   atomic.Uint64
	tapDropped      atomic.Uint64
	decodeErrors    atomic.Uint64
	tracksStarted   atomic.Uint64
	tracksFailed    atomic.Uint64
	tracksCompleted atomic.Uint64
}

// errPreempted ends delivery of a track when a new command arrives.
var errPreempted = errors.New("preempted by a new command")

func newWorker(cfg WorkerConfig, q *commandQueue, playback, tap *ringbuf.Ring[float32], opener TrackOpener, sink armer) *Worker {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Millisecond
	}
	w := &Worker{
		cfg:      cfg,
		queue:    q,
		playback: playback,
		tap:      tap,
		opener:   opener,
		sink:     sink,
	}
	if sink != nil {
		w.armed = sink.Armed()
	}
	return w
}

// State returns the current state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Run processes commands until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	wlog.Debugf("started (%d Hz, %d ch, backoff %s)", w.cfg.SampleRate, w.cfg.Channels, w.cfg.Backoff)
	for {
		if !w.queue.Pending() {
			w.setIdle()
			select {
			case <-ctx.Done():
				wlog.Debugf("stopped")
				return
			case <-w.queue.Ready():
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		// Decoding is published before the command leaves the queue, so an
		// observer never sees an empty queue and an idle worker mid-handoff.
		w.state.Store(int32(StateDecoding))
		cmd, _ := w.queue.Pop()
		w.play(ctx, cmd)
	}
}

// setIdle disarms the sink on every idle wait, including the first one
// after start and the one after a track that never pushed.
func (w *Worker) setIdle() {
	w.setArmed(false)
	if w.State() == StateIdle {
		return
	}
	w.state.Store(int32(StateIdle))
	wlog.Debugf("idle")
}

func (w *Worker) setArmed(armed bool) {
	if w.sink != nil && w.armed != armed {
		w.sink.SetArmed(armed)
	}
	w.armed = armed
}

// play runs one track to completion, failure or preemption.
func (w *Worker) play(ctx context.Context, cmd Command) {
	w.tracksStarted.Add(1)

	r, err := w.opener.Open(cmd.Path)
	if err != nil {
		wlog.Errorf("cannot play %s: %v", cmd.Path, err)
		w.tracksFailed.Add(1)
		return
	}
	defer func() {
		w.decodeErrors.Add(uint64(r.DecodeErrors()))
		if err := r.Close(); err != nil {
			wlog.Warnf("closing %s: %v", cmd.Path, err)
		}
	}()

	conv, err := resample.New(r.SampleRate(), w.cfg.SampleRate, w.cfg.Channels, w.cfg.ChunkFrames, w.cfg.Kernel)
	if err != nil {
		wlog.Errorf("cannot resample %s: %v", cmd.Path, err)
		w.tracksFailed.Add(1)
		return
	}
	wlog.Infof("playing %s (%d Hz, %d ch -> %d Hz, %d ch)",
		cmd.Path, r.SampleRate(), r.Channels(), w.cfg.SampleRate, w.cfg.Channels)

	for {
		if w.queue.Pending() {
			w.abandon(cmd.Path)
			return
		}
		block, err := r.Next()
		if errors.Is(err, io.EOF) {
			if err := w.deliver(ctx, conv.Flush()); err != nil {
				w.abandon(cmd.Path)
				return
			}
			w.tracksCompleted.Add(1)
			wlog.Infof("finished %s", cmd.Path)
			return
		}
		if err != nil {
			wlog.Errorf("abandoning %s: %v", cmd.Path, err)
			w.tracksFailed.Add(1)
			return
		}
		if err := w.deliver(ctx, conv.Process(w.remap(block))); err != nil {
			w.abandon(cmd.Path)
			return
		}
	}
}

// abandon drops everything already queued for the device so the next track
// starts immediately.
func (w *Worker) abandon(path string) {
	w.setArmed(false)
	w.playback.Flush()
	w.tap.Flush()
	wlog.Infof("stopped %s", path)
}

// remap converts a block to the device channel count. Mono is copied to
// every channel and extra channels are dropped.
func (w *Worker) remap(b track.Block) []float32 {
	out := w.cfg.Channels
	if b.Channels == out {
		return b.Samples
	}
	frames := b.Frames()
	if cap(w.remapBuf) < frames*out {
		w.remapBuf = make([]float32, frames*out)
	}
	buf := w.remapBuf[:frames*out]
	for i := range frames {
		src := b.Samples[i*b.Channels : (i+1)*b.Channels]
		dst := buf[i*out : (i+1)*out]
		for c := range dst {
			if c < len(src) {
				dst[c] = src[c]
			} else {
				dst[c] = src[0]
			}
		}
	}
	return buf
}

// deliver pushes samples into the playback ring, sleeping while it is full,
// then offers them once to the analysis tap.
func (w *Worker) deliver(ctx context.Context, samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if w.recorder != nil {
		if err := w.recorder.Write(samples); err != nil {
			wlog.Errorf("recording disabled: %v", err)
			w.recorder = nil
		}
	}

	off := 0
	for {
		n := w.playback.Push(samples[off:])
		off += n
		w.samplesPushed.Add(uint64(n))
		if n > 0 && !w.armed {
			w.setArmed(true)
		}
		if off == len(samples) {
			break
		}
		if w.queue.Pending() {
			return errPreempted
		}
		if err := sleepCtx(ctx, w.cfg.Backoff); err != nil {
			return err
		}
	}

	// Whole frames only, so the analyzer never sees a split frame.
	free := w.tap.Free()
	free -= free % w.cfg.Channels
	n := w.tap.Push(samples[:min(free, len(samples))])
	if dropped := len(samples) - n; dropped > 0 {
		w.tapDropped.Add(uint64(dropped))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
