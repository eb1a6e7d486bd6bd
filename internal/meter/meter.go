// SPDX-License-Identifier: MIT

// Package meter polls a session for level snapshots on a fixed interval and
// fans them out. It is the only caller of SampleLevel in a process, so the
// pull-based level query keeps its single-consumer contract.
package meter

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zthompson47/time2freq/internal/analysis"
	applog "github.com/zthompson47/time2freq/internal/log"
	"github.com/zthompson47/time2freq/internal/transport"
)

var log = applog.For("meter")

// LevelSource is polled with the wall-clock time since the previous poll.
type LevelSource interface {
	SampleLevel(elapsed time.Duration) analysis.Level
}

// Meter periodically samples a LevelSource and publishes each snapshot to
// its transports and to Updates.
type Meter struct {
	src        LevelSource
	interval   time.Duration
	transports []transport.Transport
	now        func() time.Time

	latestMu sync.RWMutex
	latest   analysis.Level
	updates  chan analysis.Level
	last     time.Time

	polls      atomic.Uint64
	sendErrors atomic.Uint64

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// New creates a meter. If interval is not positive it defaults to 33ms.
func New(src LevelSource, interval time.Duration, transports ...transport.Transport) *Meter {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &Meter{
		src:        src,
		interval:   interval,
		transports: transports,
		now:        time.Now,
		latest:     analysis.Silent,
		updates:    make(chan analysis.Level, 1),
	}
}

// Start begins polling. Calling Start on a running meter is a no-op.
func (m *Meter) Start() {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		log.Warnf("Start called but already running")
		return
	}
	m.ticker = time.NewTicker(m.interval)
	m.doneChan = make(chan struct{})
	m.stopOnce = sync.Once{}
	ticker, done := m.ticker, m.doneChan
	m.last = m.now()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		log.Debugf("polling every %s", m.interval)
		for {
			select {
			case <-ticker.C:
				m.Poll()
			case <-done:
				return
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit. It is safe to call
// more than once.
func (m *Meter) Stop() error {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return nil
	}
	m.stopOnce.Do(func() {
		close(m.doneChan)
		m.ticker.Stop()
		m.ticker = nil
	})
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

// Poll takes one snapshot and publishes it. Start calls it on every tick;
// it is exported for callers that drive the meter themselves. Poll must not
// run concurrently with itself.
func (m *Meter) Poll() analysis.Level {
	now := m.now()
	elapsed := now.Sub(m.last)
	m.last = now

	level := m.src.SampleLevel(elapsed)
	m.polls.Add(1)

	m.latestMu.Lock()
	m.latest = level
	m.latestMu.Unlock()

	// Latest wins: replace an unread update rather than block.
	select {
	case <-m.updates:
	default:
	}
	m.updates <- level

	for _, t := range m.transports {
		if err := t.Send(level); err != nil {
			if m.sendErrors.Add(1) == 1 {
				log.Warnf("transport send failed: %v", err)
			}
		}
	}
	return level
}

// Latest returns the most recent snapshot without polling.
func (m *Meter) Latest() analysis.Level {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest
}

// Updates delivers snapshots as they are taken. Only the newest unread
// snapshot is kept.
func (m *Meter) Updates() <-chan analysis.Level {
	return m.updates
}

// Polls returns how many snapshots have been taken.
func (m *Meter) Polls() uint64 { return m.polls.Load() }

// SendErrors returns how many transport sends failed.
func (m *Meter) SendErrors() uint64 { return m.sendErrors.Load() }

// Close stops polling and closes every transport.
func (m *Meter) Close() error {
	errs := []error{m.Stop()}
	for _, t := range m.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
