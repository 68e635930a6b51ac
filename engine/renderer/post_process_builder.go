package renderer

import (
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
)

// PostProcessBuilderOption is a functional option applied to a post-process stage during construction via NewPostProcess.
type PostProcessBuilderOption func(*postProcess)

// WithExposure sets the initial exposure multiplier. The default is 1.
//
// Parameters:
//   - exposure: the multiplier applied to the scene color
//
// Returns:
//   - PostProcessBuilderOption: a function that applies the exposure to a post-process stage
func WithExposure(exposure float32) PostProcessBuilderOption {
	return func(pp *postProcess) {
		pp.params.Exposure = exposure
	}
}

// WithVignette sets the vignette strength; 0 disables it.
//
// Parameters:
//   - strength: the darkening at the corners
//
// Returns:
//   - PostProcessBuilderOption: a function that applies the vignette to a post-process stage
func WithVignette(strength float32) PostProcessBuilderOption {
	return func(pp *postProcess) {
		pp.params.Vignette = strength
	}
}

// WithPostShader replaces the builtin post-process compute shader. The shader must use the same
// bindings as the builtin one.
//
// Parameters:
//   - s: the compute shader
//
// Returns:
//   - PostProcessBuilderOption: a function that applies the shader to a post-process stage
func WithPostShader(s shader.Shader) PostProcessBuilderOption {
	return func(pp *postProcess) {
		pp.shader = s
	}
}
