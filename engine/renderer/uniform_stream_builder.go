package renderer

// UniformStreamBuilderOption is a functional option applied to a uniform stream during construction via NewUniformStream.
type UniformStreamBuilderOption func(*uniformStream)

// WithRegions sets the number of frame regions, normally the number of frames in flight.
// Values below 1 are ignored.
//
// Parameters:
//   - n: the region count
//
// Returns:
//   - UniformStreamBuilderOption: a function that applies the region count to a uniform stream
func WithRegions(n int) UniformStreamBuilderOption {
	return func(us *uniformStream) {
		if n >= 1 {
			us.regions = n
		}
	}
}

// WithUniformWorkers sets how many pooled goroutines encode uniform blocks each frame.
// 1 or less encodes on the calling goroutine.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - UniformStreamBuilderOption: a function that applies the worker count to a uniform stream
func WithUniformWorkers(n int) UniformStreamBuilderOption {
	return func(us *uniformStream) {
		us.workers = max(n, 1)
	}
}

// WithStreamLabel sets the debug label of the backing buffer.
//
// Parameters:
//   - label: the buffer label
//
// Returns:
//   - UniformStreamBuilderOption: a function that applies the label to a uniform stream
func WithStreamLabel(label string) UniformStreamBuilderOption {
	return func(us *uniformStream) {
		us.label = label
	}
}
