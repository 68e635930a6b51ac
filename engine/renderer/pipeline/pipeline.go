// Package pipeline describes the fixed-function state baked into graphics pipelines.
package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// FixedFunctionState holds the non-programmable configuration of a graphics pipeline.
// It is a plain value so the same state can be shared by every pipeline the renderer builds.
type FixedFunctionState struct {
	// Topology is the primitive assembly mode.
	Topology wgpu.PrimitiveTopology
	// CullMode selects which faces are discarded.
	CullMode wgpu.CullMode
	// FrontFace selects the winding order treated as front facing.
	FrontFace wgpu.FrontFace

	// DepthTestEnabled enables comparing fragments against the depth attachment.
	DepthTestEnabled bool
	// DepthWriteEnabled enables writing fragment depth.
	DepthWriteEnabled bool
	// DepthCompare is the comparison used when DepthTestEnabled is set.
	DepthCompare wgpu.CompareFunction
	// DepthBias is the constant depth bias.
	DepthBias int32
	// DepthBiasSlopeScale is the slope-scaled depth bias.
	DepthBiasSlopeScale float32

	// ColorAttachmentCount is the number of color targets written by the fragment stage.
	ColorAttachmentCount int
	// BlendEnabled toggles BlendState on every color target.
	BlendEnabled bool
	// BlendState is applied when BlendEnabled is set.
	BlendState *wgpu.BlendState
	// WriteMask limits which color channels are written.
	WriteMask wgpu.ColorWriteMask

	// DynamicViewport marks the viewport as set per pass rather than baked in.
	DynamicViewport bool
	// DynamicScissor marks the scissor rectangle as set per pass rather than baked in.
	DynamicScissor bool
}

// DefaultFixedFunctionState returns the state used for every scene pipeline: triangle lists,
// back-face culling with clockwise front faces, depth test and write with less-or-equal,
// one color attachment, no blending, dynamic viewport and scissor.
//
// Returns:
//   - FixedFunctionState: the default state
func DefaultFixedFunctionState() FixedFunctionState {
	return FixedFunctionState{
		Topology:             wgpu.PrimitiveTopologyTriangleList,
		CullMode:             wgpu.CullModeBack,
		FrontFace:            wgpu.FrontFaceCW,
		DepthTestEnabled:     true,
		DepthWriteEnabled:    true,
		DepthCompare:         wgpu.CompareFunctionLessEqual,
		ColorAttachmentCount: 1,
		BlendEnabled:         false,
		WriteMask:            wgpu.ColorWriteMaskAll,
		DynamicViewport:      true,
		DynamicScissor:       true,
	}
}

// NewFixedFunctionState returns the default state with the given options applied.
//
// Parameters:
//   - options: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - FixedFunctionState: the configured state
func NewFixedFunctionState(options ...PipelineBuilderOption) FixedFunctionState {
	s := DefaultFixedFunctionState()
	for _, opt := range options {
		opt(&s)
	}
	return s
}

// EffectiveDepthCompare returns the compare function the pipeline is built with.
// A disabled depth test always passes.
//
// Returns:
//   - wgpu.CompareFunction: DepthCompare, or CompareFunctionAlways when depth testing is off
func (s FixedFunctionState) EffectiveDepthCompare() wgpu.CompareFunction {
	if !s.DepthTestEnabled {
		return wgpu.CompareFunctionAlways
	}
	return s.DepthCompare
}

// Key returns a canonical string for the state, used in pipeline labels and logs.
//
// Returns:
//   - string: the canonical key
func (s FixedFunctionState) Key() string {
	return fmt.Sprintf("topo=%d;cull=%d;front=%d;depth=%t/%t/%d;bias=%d/%g;color=%d;blend=%t;mask=%d;dyn=%t/%t",
		s.Topology, s.CullMode, s.FrontFace,
		s.DepthTestEnabled, s.DepthWriteEnabled, s.DepthCompare,
		s.DepthBias, s.DepthBiasSlopeScale,
		s.ColorAttachmentCount, s.BlendEnabled, s.WriteMask,
		s.DynamicViewport, s.DynamicScissor)
}

// Validate checks that the state can be turned into a pipeline.
//
// Returns:
//   - error: a description of the first inconsistency, or nil
func (s FixedFunctionState) Validate() error {
	if s.ColorAttachmentCount < 1 {
		return fmt.Errorf("pipeline state needs at least one color attachment, got %d", s.ColorAttachmentCount)
	}
	if s.BlendEnabled && s.BlendState == nil {
		return fmt.Errorf("pipeline state enables blending without a blend state")
	}
	return nil
}
