// SPDX-License-Identifier: MIT
// Package bitint holds the power-of-two helpers used for FFT sizing.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, or 1 for
// size <= 0. Subtracting one first keeps exact powers unchanged:
// bits.Len(7) = 3, so 8 maps to 1<<3 = 8 rather than 16.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has one bit set, so clearing its lowest set bit leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
