/*
Package bitint provides power-of-2 bit arithmetic for FFT and buffer
sizing. Spectral transforms only accept power-of-2 window sizes, and
window sizes are usually expressed as an order k where size = 1 << k,
so the package converts between the two forms and validates both.

All operations are O(1), allocation-free and safe on the audio path.

Usage:

	// Round a requested buffer length up to a usable FFT size
	size := bitint.NextPowerOfTwo(1000) // 1024

	// Validate a configured window size
	ok := bitint.IsPowerOfTwo(size)

	// Recover the FFT order from a window size
	order := bitint.Log2(1024) // 10
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Exact powers
// of 2 are preserved, which is why the subtraction below matters: for
// size 8, bits.Len64(7) = 3 and 1<<3 = 8, while without the -1 the
// result would incorrectly double to 16.
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

	// 64-bit platforms (where int is 64-bit)
	if ^uint(0)>>63 == 0 {
		return int(1 << (bits.Len64(uint64(size - 1))))
	}

	// 32-bit platforms
	return int(1 << (bits.Len32(uint32(size - 1))))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2
// have exactly one bit set, so n&(n-1) clears to zero only for them.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns k such that 1<<k == n for a power-of-2 n. For other
// inputs it returns the floor of log2(n), and -1 for n <= 0. Callers
// validating an FFT order should check IsPowerOfTwo first.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len64(uint64(n)) - 1
}
