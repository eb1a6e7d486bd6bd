// SPDX-License-Identifier: MIT

/*
Package ringbuf implements a fixed-capacity, lock-free, single-producer
single-consumer circular buffer.

The producer owns the write position and the consumer owns the read position.
Each side publishes its position with an atomic store and observes the other
side's position with an atomic load, so one goroutine may push while another
goroutine (or a PortAudio callback thread) pops without locks.

Positions are monotonically increasing uint64 counters; the slot for a
position is pos&mask when the capacity is a power of 2 and pos%capacity
otherwise, so the capacity requested is exactly the capacity provided.

Usage:

	r := ringbuf.New[float32](2 * latencyFrames * channels)

	// producer goroutine
	n := r.Push(block)

	// consumer (audio callback)
	if !r.TryPopChunk(frame) {
		clear(frame)
	}
*/
package ringbuf

import (
	"sync/atomic"

	"github.com/zthompson47/time2freq/pkg/bitint"
)

// cacheLine pads the producer and consumer positions onto separate lines.
const cacheLine = 64

// Ring is a bounded SPSC queue. The zero value is not usable; call New.
type Ring[T any] struct {
	buf    []T
	size   uint64
	mask   uint64
	masked bool

	_     [cacheLine]byte
	write atomic.Uint64 // next position the producer writes
	// flushMark is the write position at the last Flush. The consumer
	// treats everything below it as stale.
	flushMark atomic.Uint64

	_    [cacheLine]byte
	read atomic.Uint64 // next position the consumer reads
	_    [cacheLine]byte
}

// New creates a ring holding exactly capacity items. It panics if capacity
// is not positive, as a ring without slots is a programming error.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	mask, masked := bitint.IndexMask(capacity)
	return &Ring[T]{
		buf:    make([]T, capacity),
		size:   uint64(capacity),
		mask:   mask,
		masked: masked,
	}
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int { return int(r.size) }

// Len returns the number of items currently readable. It is exact on the
// consumer side and a lower bound on the producer side. Items invalidated by
// Flush but not yet skipped by the consumer are not counted.
//
// The write index is loaded last so a third goroutine never sees a negative
// length.
func (r *Ring[T]) Len() int {
	rd := r.read.Load()
	if m := r.flushMark.Load(); m > rd {
		rd = m
	}
	w := r.write.Load()
	return int(w - rd)
}

// Free returns the number of slots the producer can fill right now. It is
// exact on the producer side and a lower bound on the consumer side.
func (r *Ring[T]) Free() int {
	return int(r.size - (r.write.Load() - r.read.Load()))
}

func (r *Ring[T]) index(pos uint64) uint64 {
	if r.masked {
		return pos & r.mask
	}
	return pos % r.size
}

// TryPush appends a single item. It returns false when the ring is full.
// Producer side only.
func (r *Ring[T]) TryPush(v T) bool {
	w := r.write.Load()
	if w-r.read.Load() >= r.size {
		return false
	}
	r.buf[r.index(w)] = v
	r.write.Store(w + 1)
	return true
}

// Push appends as many items from vs as fit and returns how many were
// written. Producer side only.
func (r *Ring[T]) Push(vs []T) int {
	w := r.write.Load()
	free := r.size - (w - r.read.Load())
	n := uint64(len(vs))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	start := r.index(w)
	first := min(n, r.size-start)
	copy(r.buf[start:start+first], vs[:first])
	copy(r.buf[:n-first], vs[first:n])
	r.write.Store(w + n)
	return int(n)
}

// Flush marks every item written so far as stale. The consumer discards
// them on its next pop, so a producer can abandon buffered data without
// touching the read position it does not own. Producer side only.
func (r *Ring[T]) Flush() {
	r.flushMark.Store(r.write.Load())
}

// skipStale advances the read position past flushed items and returns the
// current read position. Consumer side only.
func (r *Ring[T]) skipStale() uint64 {
	rd := r.read.Load()
	if m := r.flushMark.Load(); m > rd {
		r.read.Store(m)
		return m
	}
	return rd
}

// TryPopChunk fills dst completely or not at all. It returns false, leaving
// the ring untouched, when fewer than len(dst) items are readable.
// Consumer side only.
func (r *Ring[T]) TryPopChunk(dst []T) bool {
	rd := r.skipStale()
	n := uint64(len(dst))
	if r.write.Load()-rd < n {
		return false
	}
	r.copyOut(dst, rd, n)
	r.read.Store(rd + n)
	return true
}

// Pop reads up to len(dst) items into dst and returns how many were read.
// Consumer side only.
func (r *Ring[T]) Pop(dst []T) int {
	rd := r.skipStale()
	n := min(uint64(len(dst)), r.write.Load()-rd)
	if n == 0 {
		return 0
	}
	r.copyOut(dst, rd, n)
	r.read.Store(rd + n)
	return int(n)
}

func (r *Ring[T]) copyOut(dst []T, rd, n uint64) {
	start := r.index(rd)
	first := min(n, r.size-start)
	copy(dst[:first], r.buf[start:start+first])
	copy(dst[first:n], r.buf[:n-first])
}
