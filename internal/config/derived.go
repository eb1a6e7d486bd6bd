// SPDX-License-Identifier: MIT
package config

import (
	"math"
	"time"
)

// LatencyFrames returns round(latency_ms * sample_rate / 1000).
func (c *Config) LatencyFrames() int {
	return int(math.Round(float64(c.Audio.LatencyMs) * float64(c.Audio.SampleRate) / 1000))
}

// RingCapacity returns the sample capacity of each session ring: two
// latency windows of interleaved samples.
func (c *Config) RingCapacity() int {
	return 2 * c.LatencyFrames() * c.Audio.Channels
}

// Latency returns the configured latency as a duration.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Audio.LatencyMs) * time.Millisecond
}

// BackoffInterval is how long the worker sleeps when the playback ring is
// full: a quarter of the latency, never less than MinBackoff.
func (c *Config) BackoffInterval() time.Duration {
	return max(c.Latency()/4, MinBackoff)
}
