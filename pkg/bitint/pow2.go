// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-2 helpers used when sizing real-time
buffers: ring capacities, device buffer sizes and index masks.

Design Principles:
- Zero Allocations: all operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: no locks, syscalls, or blocking operations

Usage:

	// Round a requested device buffer up to a power of 2
	frames := bitint.NextPowerOfTwo(1000) // 1024

	// Choose between mask and modulo indexing for a ring
	if mask, ok := bitint.IndexMask(capacity); ok {
		slot := pos & mask
	}

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of 2 are preserved: for 8, bits.Len(7) = 3 and 1<<3 = 8, while
bits.Len(8) = 4 would double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IndexMask returns capacity-1 as a uint64 mask when capacity is a power of
// 2, so that pos&mask == pos%capacity for any monotonically increasing pos.
// ok is false for every other capacity, in which case callers must fall
// back to modulo indexing.
func IndexMask(capacity int) (mask uint64, ok bool) {
	if !IsPowerOfTwo(capacity) {
		return 0, false
	}
	return uint64(capacity - 1), true
}
