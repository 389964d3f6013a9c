package sliceutils

// Cut returns slice[start:end] with python-like negative indexing and
// clamping, so callers can take "the last n elements" without bounds checks.
func Cut[T any](slice []T, start, end int) []T {
	if len(slice) == 0 {
		return slice
	}

	if start < 0 {
		start = len(slice) + start
	}
	if end < 0 {
		end = len(slice) + end
	}

	start = max(start, 0)
	end = min(end, len(slice))
	if start > end {
		return slice[:0]
	}

	return slice[start:end]
}
