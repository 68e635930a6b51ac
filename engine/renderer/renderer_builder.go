package renderer

import (
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithProgramFactory replaces the default shader program factory.
//
// Parameters:
//   - factory: the Material to ShaderProgram factory
//
// Returns:
//   - RendererBuilderOption: a function that applies the factory to a renderer
func WithProgramFactory(factory shader.ProgramFactory) RendererBuilderOption {
	return func(r *renderer) {
		r.factory = factory
	}
}

// WithStreamOptions forwards options to NewUniformStream. The region count always defaults to
// the surface image count.
//
// Parameters:
//   - options: the uniform stream options
//
// Returns:
//   - RendererBuilderOption: a function that applies the options to a renderer
func WithStreamOptions(options ...UniformStreamBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.streamOptions = append(r.streamOptions, options...)
	}
}

// WithCacheOptions forwards options to NewResourceCache.
//
// Parameters:
//   - options: the resource cache options
//
// Returns:
//   - RendererBuilderOption: a function that applies the options to a renderer
func WithCacheOptions(options ...ResourceCacheBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.cacheOptions = append(r.cacheOptions, options...)
	}
}

// WithPostProcessOptions forwards options to NewPostProcess.
//
// Parameters:
//   - options: the post-process options
//
// Returns:
//   - RendererBuilderOption: a function that applies the options to a renderer
func WithPostProcessOptions(options ...PostProcessBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.postOptions = append(r.postOptions, options...)
	}
}

// WithExecutorOptions forwards options to NewFrameExecutor.
//
// Parameters:
//   - options: the frame executor options
//
// Returns:
//   - RendererBuilderOption: a function that applies the options to a renderer
func WithExecutorOptions(options ...FrameExecutorBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.executorOptions = append(r.executorOptions, options...)
	}
}
