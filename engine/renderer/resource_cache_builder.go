package renderer

import (
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// ResourceCacheBuilderOption is a functional option applied to a resource cache during construction via NewResourceCache.
type ResourceCacheBuilderOption func(*resourceCache)

// WithFixedFunctionState overrides the fixed-function state every scene pipeline is built with.
//
// Parameters:
//   - state: the pipeline state
//
// Returns:
//   - ResourceCacheBuilderOption: a function that applies the state to a resource cache
func WithFixedFunctionState(state pipeline.FixedFunctionState) ResourceCacheBuilderOption {
	return func(rc *resourceCache) {
		rc.state = state
	}
}

// WithTargetFormats sets the color and depth formats pipelines render into.
// The defaults match the post-process scene targets.
//
// Parameters:
//   - color: the color attachment format
//   - depth: the depth attachment format, or wgpu.TextureFormatUndefined for none
//
// Returns:
//   - ResourceCacheBuilderOption: a function that applies the formats to a resource cache
func WithTargetFormats(color, depth wgpu.TextureFormat) ResourceCacheBuilderOption {
	return func(rc *resourceCache) {
		rc.colorFormat = color
		rc.depthFormat = depth
	}
}

// WithMaterialSampler overrides the sampler shared by every material texture.
//
// Parameters:
//   - desc: the sampler descriptor
//
// Returns:
//   - ResourceCacheBuilderOption: a function that applies the sampler to a resource cache
func WithMaterialSampler(desc gpu.SamplerDescriptor) ResourceCacheBuilderOption {
	return func(rc *resourceCache) {
		rc.samplerDesc = desc
	}
}
