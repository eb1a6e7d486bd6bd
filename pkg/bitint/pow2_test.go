// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},       // Negative number
		{0, 1},         // Zero
		{1, 1},         // One
		{8, 8},         // Already power of two
		{10, 16},       // Not power of two
		{1000, 1024},   // Typical device buffer
		{19200, 32768}, // 100ms stereo at 48kHz, in frames
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{8, true},       // Power of two
		{10, false},     // Not power of two
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIndexMask(t *testing.T) {
	tests := []struct {
		capacity int
		mask     uint64
		ok       bool
	}{
		{0, 0, false},
		{3, 0, false},
		{4, 3, true},
		{19200, 0, false},
		{1 << 16, 1<<16 - 1, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap=%d", tt.capacity), func(t *testing.T) {
			mask, ok := IndexMask(tt.capacity)
			if ok != tt.ok || mask != tt.mask {
				t.Errorf("IndexMask(%d) = (%d, %v), expected (%d, %v)", tt.capacity, mask, ok, tt.mask, tt.ok)
			}
			if !ok {
				return
			}
			for pos := uint64(0); pos < uint64(3*tt.capacity); pos += 7 {
				if pos&mask != pos%uint64(tt.capacity) {
					t.Fatalf("pos %d: mask index %d != modulo index %d", pos, pos&mask, pos%uint64(tt.capacity))
				}
			}
		})
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		NextPowerOfTwo(i % 10000)
		i++
	}
}
