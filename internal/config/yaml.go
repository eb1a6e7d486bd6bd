// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Output device and buffering settings.
	Resampler ResamplerConfig `yaml:"resampler"` // Sinc kernel parameters.
	Decoder   DecoderConfig   `yaml:"decoder"`   // Track decoding settings.
	Meter     MeterConfig     `yaml:"meter"`     // Level polling settings.
	Recording RecordingConfig `yaml:"recording"` // Output recording settings.
	Transport TransportConfig `yaml:"transport"` // Level and metrics publishing settings.
}

// AudioConfig holds the session configuration. Changing any of these means
// tearing the session down and building a new one.
type AudioConfig struct {
	OutputDevice    int `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	SampleRate      int `yaml:"sample_rate"`       // Device sample rate in Hz.
	Channels        int `yaml:"channels"`          // Device channel count (1 or 2).
	LatencyMs       int `yaml:"latency_ms"`        // Target end-to-end buffering delay.
	ChunkFrames     int `yaml:"chunk_frames"`      // Resampler chunk size in frames.
	FramesPerBuffer int `yaml:"frames_per_buffer"` // Frames per device callback (0 lets PortAudio choose).
}

// ResamplerConfig holds the sinc interpolation kernel parameters.
type ResamplerConfig struct {
	SincLen       int     `yaml:"sinc_len"`      // Taps per output sample, a multiple of 8.
	Oversampling  int     `yaml:"oversampling"`  // Kernel table entries per input sample period.
	Cutoff        float64 `yaml:"cutoff"`        // Relative cutoff, (0, 1].
	Window        string  `yaml:"window"`        // Window function name (e.g., "BlackmanHarris", "Hann").
	Interpolation string  `yaml:"interpolation"` // Kernel table interpolation ("linear" or "nearest").
}

// DecoderConfig holds track decoding settings.
type DecoderConfig struct {
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors"` // Bad packets in a row before the track is abandoned.
}

// MeterConfig holds settings for the periodic level query.
type MeterConfig struct {
	Interval         time.Duration `yaml:"interval"`          // Time between level polls.
	WatchdogInterval time.Duration `yaml:"watchdog_interval"` // Time between underrun checks.
}

// RecordingConfig holds settings for recording the device-rate output stream.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record everything pushed to the device.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16, 24 or 32).
}

// TransportConfig holds settings related to sending level data over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending level packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Enable the WebSocket level broadcast.
	WSAddress        string        `yaml:"ws_address"`         // Listen address for WebSocket and /metrics.
	MetricsEnabled   bool          `yaml:"metrics_enabled"`    // Serve Prometheus metrics on WSAddress.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			LatencyMs:       DefaultLatencyMs,
			ChunkFrames:     DefaultChunkFrames,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Resampler: ResamplerConfig{
			SincLen:       DefaultSincLen,
			Oversampling:  DefaultOversampling,
			Cutoff:        DefaultCutoff,
			Window:        DefaultWindow,
			Interpolation: DefaultInterpolation,
		},
		Decoder: DecoderConfig{
			MaxConsecutiveErrors: DefaultMaxConsecutiveDecodeErrors,
		},
		Meter: MeterConfig{
			Interval:         DefaultMeterInterval,
			WatchdogInterval: DefaultWatchdogInterval,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultMeterInterval,
			WSEnabled:        false,
			WSAddress:        DefaultWSAddress,
			MetricsEnabled:   false,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"time2freq.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, v ...any) {
		errs = append(errs, fmt.Errorf(format, v...))
	}

	// Audio Validation
	a := c.Audio
	if a.OutputDevice < MinDeviceID {
		add("audio.output_device %d is invalid (use -1 for default)", a.OutputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		add("audio.sample_rate %d outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.Channels < 1 || a.Channels > MaxChannels {
		add("audio.channels %d outside [1, %d]", a.Channels, MaxChannels)
	}
	if a.LatencyMs <= 0 {
		add("audio.latency_ms must be positive")
	}
	if a.FramesPerBuffer < 0 || a.FramesPerBuffer > MaxBufferFrames {
		add("audio.frames_per_buffer %d outside [0, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}

	// Resampler Validation
	r := c.Resampler
	if r.SincLen <= 0 || r.SincLen%8 != 0 {
		add("resampler.sinc_len %d must be a positive multiple of 8", r.SincLen)
	}
	if r.Oversampling <= 0 {
		add("resampler.oversampling must be positive")
	}
	if r.Cutoff <= 0 || r.Cutoff > 1 {
		add("resampler.cutoff %g outside (0, 1]", r.Cutoff)
	}
	if r.Window == "" {
		add("resampler.window must be set")
	}
	switch strings.ToLower(r.Interpolation) {
	case "linear", "nearest":
	default:
		add("resampler.interpolation %q must be linear or nearest", r.Interpolation)
	}
	if a.ChunkFrames < r.SincLen {
		add("audio.chunk_frames %d must be at least resampler.sinc_len %d", a.ChunkFrames, r.SincLen)
	}

	// Decoder Validation
	if c.Decoder.MaxConsecutiveErrors < 1 {
		add("decoder.max_consecutive_errors must be at least 1")
	}

	// Meter Validation
	if c.Meter.Interval <= 0 {
		add("meter.interval must be positive")
	}
	if c.Meter.WatchdogInterval <= 0 {
		add("meter.watchdog_interval must be positive")
	}

	// Recording Validation
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			add("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			add("recording.output_dir must be set when recording is enabled")
		}
	}

	// Transport Validation
	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			add("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			add("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if (t.WSEnabled || t.MetricsEnabled) && !strings.Contains(t.WSAddress, ":") {
		add("transport.ws_address %q appears invalid (missing port?)", t.WSAddress)
	}

	return errors.Join(errs...)
}

// applyEnvOverrides reads ENV_* variables over the loaded values. Unparseable
// values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}

	// ENV_{AUDIO}
	// These are specific to the session configuration.

	// ENV_LATENCY_MS
	if val, ok := os.LookupEnv("ENV_LATENCY_MS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.LatencyMs = iVal
		}
	}
	// ENV_OUTPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_OUTPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.OutputDevice = iVal
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WSAddress = val
	}
}
