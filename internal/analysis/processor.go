// SPDX-License-Identifier: MIT
package analysis

import "time"

// SampleProcessor consumes interleaved float32 frames. Implementations keep
// their own state between calls and must not retain the slice.
type SampleProcessor interface {
	Process(samples []float32)
}

// LevelProvider is the periodic level query used by meters and UIs.
type LevelProvider interface {
	// Sample drains up to elapsed worth of audio and returns the current
	// level. Only one goroutine may call it.
	Sample(elapsed time.Duration) Level
}

// Source is the consumer side of the analysis ring.
type Source interface {
	Pop(dst []float32) int
	Cap() int
}

// Compile-time checks for interface implementations.
var (
	_ SampleProcessor = (*Loudness)(nil)
	_ LevelProvider   = (*Analyzer)(nil)
)
