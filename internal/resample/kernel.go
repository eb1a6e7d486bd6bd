// SPDX-License-Identifier: MIT
package resample

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// windows maps config names to gonum window functions. Each multiplies its
// argument in place.
var windows = map[string]func([]float64) []float64{
	"BlackmanHarris":  window.BlackmanHarris,
	"Blackman":        window.Blackman,
	"BlackmanNuttall": window.BlackmanNuttall,
	"Nuttall":         window.Nuttall,
	"Hann":            window.Hann,
	"Hamming":         window.Hamming,
}

// Windows returns the accepted window names.
func Windows() []string {
	names := make([]string, 0, len(windows))
	for name := range windows {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// kernel is a windowed sinc tabulated at Oversampling points per input
// period and split into one sub-kernel per phase.
//
// sub[p][k] is the weight of tap k for an output that lies p/Oversampling
// of a period past input frame j0, where tap k reads input frame
// j0 - SincLen/2 + 1 + k. There are Oversampling+1 phases so that linear
// interpolation can always read p and p+1.
type kernel struct {
	sincLen int
	over    int
	sub     [][]float64
}

type kernelKey struct {
	sincLen, over int
	cutoff        float64
	window        string
}

var (
	kernelMu    sync.Mutex
	kernelCache = map[kernelKey]*kernel{}
)

// kernelFor returns a shared, read-only kernel for the parameters.
func kernelFor(cfg KernelConfig, cutoff float64) *kernel {
	key := kernelKey{cfg.SincLen, cfg.Oversampling, cutoff, cfg.Window}
	kernelMu.Lock()
	defer kernelMu.Unlock()
	if k, ok := kernelCache[key]; ok {
		return k
	}
	k := buildKernel(cfg.SincLen, cfg.Oversampling, cutoff, windows[cfg.Window])
	kernelCache[key] = k
	return k
}

func buildKernel(sincLen, over int, cutoff float64, win func([]float64) []float64) *kernel {
	n := sincLen*over + 1
	table := make([]float64, n)
	for i := range table {
		table[i] = 1
	}
	win(table)

	half := float64(sincLen) / 2
	for m := range table {
		x := float64(m)/float64(over) - half
		table[m] *= cutoff * sinc(cutoff*x)
	}
	// Unity gain at DC, averaged over all phases.
	floats.Scale(float64(over)/floats.Sum(table), table)

	sub := make([][]float64, over+1)
	for p := range sub {
		taps := make([]float64, sincLen)
		for k := range taps {
			taps[k] = table[p+over*(sincLen-1-k)]
		}
		sub[p] = taps
	}
	return &kernel{sincLen: sincLen, over: over, sub: sub}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
