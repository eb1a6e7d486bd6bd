// SPDX-License-Identifier: MIT

// Package transport publishes level snapshots outside the process.
package transport

// Transport defines a generic interface for sending level snapshots or events.
// Implementations should be thread-safe and must not block the caller for
// long, since Send runs on the meter's polling goroutine.
type Transport interface {
	Send(data any) error
	Close() error
}
