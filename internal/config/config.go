// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the playback session.
const (
	// Audio device and buffering defaults.
	DefaultOutputDevice    = MinDeviceID // System default output device
	DefaultSampleRate      = 48000       // Device rate in Hz
	DefaultChannels        = 2           // Stereo output
	DefaultLatencyMs       = 100         // Target end-to-end buffering delay
	DefaultChunkFrames     = 1024        // Resampler chunk size in frames
	DefaultFramesPerBuffer = 512         // Frames per device callback

	// Resampler kernel defaults.
	DefaultSincLen       = 256
	DefaultOversampling  = 256
	DefaultCutoff        = 0.95
	DefaultWindow        = "BlackmanHarris"
	DefaultInterpolation = "linear"

	// Decoder defaults.
	DefaultMaxConsecutiveDecodeErrors = 5 // Bad packets in a row before the track is abandoned

	// Meter and transport defaults.
	DefaultMeterInterval    = 33 * time.Millisecond // ~30Hz level polls
	DefaultWatchdogInterval = time.Second
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultWSAddress        = "127.0.0.1:8080"

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxChannels     = 2      // Level snapshots carry at most two channels
	MaxBufferFrames = 8192   // Maximum frames per device callback
	MinBackoff      = time.Millisecond
)
