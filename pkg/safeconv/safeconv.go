// Package safeconv provides safe integer type conversion functions that panic on overflow.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || v > int(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustUint32ToInt converts uint32 to int, panics on overflow.
// Use only when overflow is logically impossible (int is at least 32 bits).
func MustUint32ToInt(v uint32) int {
	if uint64(v) > uint64(MaxInt) {
		panic("safeconv: uint32 to int overflow")
	}

	return int(v)
}

// MustInt64ToInt converts int64 to int, panics on overflow.
// Use only when overflow is logically impossible.
func MustInt64ToInt(v int64) int {
	if v < int64(math.MinInt) || v > int64(MaxInt) {
		panic("safeconv: int64 to int overflow")
	}

	return int(v)
}
