package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// AlignSize rounds size up to the next multiple of align. An align of 0 or 1 returns size unchanged.
//
// Parameters:
//   - size: the size in bytes to round up
//   - align: the required alignment in bytes
//
// Returns:
//   - uint64: the smallest multiple of align that is >= size
func AlignSize(size, align uint64) uint64 {
	if align <= 1 {
		return size
	}
	return (size + align - 1) / align * align
}

// DivCeil returns ceil(n / d) for a positive d.
func DivCeil(n, d uint32) uint32 {
	return (n + d - 1) / d
}
