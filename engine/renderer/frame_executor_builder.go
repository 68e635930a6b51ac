package renderer

// FrameExecutorBuilderOption is a functional option applied to a frame executor during construction via NewFrameExecutor.
type FrameExecutorBuilderOption func(*frameExecutor)

// WithClearColor sets the color the scene target is cleared to at the start of every frame.
// The default is opaque mid gray.
//
// Parameters:
//   - color: RGBA clear color
//
// Returns:
//   - FrameExecutorBuilderOption: a function that applies the clear color to a frame executor
func WithClearColor(color [4]float64) FrameExecutorBuilderOption {
	return func(fe *frameExecutor) {
		fe.clearColor = color
	}
}
