// SPDX-License-Identifier: MIT
package audio

import "sync"

// Command asks the worker to play a file.
type Command struct {
	Path string
}

// commandQueue is an unbounded FIFO with many producers and one consumer.
// It is off the real-time path, so a mutex is enough.
type commandQueue struct {
	mu     sync.Mutex
	items  []Command
	notify chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{notify: make(chan struct{}, 1)}
}

// Push enqueues c and wakes the consumer. It never blocks.
func (q *commandQueue) Push(c Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest command.
func (q *commandQueue) Pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	c := q.items[0]
	q.items[0] = Command{}
	q.items = q.items[1:]
	return c, true
}

// Pending reports whether a command is waiting.
func (q *commandQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}

// Len returns the number of waiting commands.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready is signalled after a Push. A signal may be stale, so consumers
// must Pop rather than assume a command exists.
func (q *commandQueue) Ready() <-chan struct{} {
	return q.notify
}
