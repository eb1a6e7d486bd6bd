// SPDX-License-Identifier: MIT
package resample

import (
	"errors"
	"fmt"
	"strings"
)

// Interpolation selects how the kernel table is sampled between its
// oversampled points.
type Interpolation int

const (
	Linear Interpolation = iota
	Nearest
)

func (i Interpolation) String() string {
	switch i {
	case Linear:
		return "linear"
	case Nearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// ParseInterpolation converts a config string (case-insensitive).
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "":
		return Linear, nil
	case "nearest":
		return Nearest, nil
	default:
		return Linear, fmt.Errorf("unknown interpolation %q", s)
	}
}

// KernelConfig holds the sinc interpolation parameters.
type KernelConfig struct {
	SincLen       int     // Taps per output sample. Multiple of 8.
	Oversampling  int     // Table points per input sample period.
	Cutoff        float64 // Relative to the lower Nyquist frequency, (0, 1].
	Window        string  // Window function name, see Windows.
	Interpolation Interpolation
}

// DefaultKernelConfig is a 256-tap Blackman-Harris kernel oversampled 256
// times with linear interpolation.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		SincLen:       256,
		Oversampling:  256,
		Cutoff:        0.95,
		Window:        "BlackmanHarris",
		Interpolation: Linear,
	}
}

var (
	ErrInvalidKernel = errors.New("invalid resampler kernel")
	ErrInvalidRate   = errors.New("invalid sample rate")
)

// Validate checks the kernel against a chunk size in frames.
func (k KernelConfig) Validate(chunkFrames int) error {
	switch {
	case k.SincLen <= 0 || k.SincLen%8 != 0:
		return fmt.Errorf("%w: sinc length %d must be a positive multiple of 8", ErrInvalidKernel, k.SincLen)
	case k.Oversampling <= 0:
		return fmt.Errorf("%w: oversampling %d must be positive", ErrInvalidKernel, k.Oversampling)
	case k.Cutoff <= 0 || k.Cutoff > 1:
		return fmt.Errorf("%w: cutoff %g outside (0, 1]", ErrInvalidKernel, k.Cutoff)
	case chunkFrames < k.SincLen:
		return fmt.Errorf("%w: chunk of %d frames is shorter than the %d-tap kernel", ErrInvalidKernel, chunkFrames, k.SincLen)
	}
	if _, ok := windows[k.Window]; !ok {
		return fmt.Errorf("%w: unknown window %q", ErrInvalidKernel, k.Window)
	}
	return nil
}
