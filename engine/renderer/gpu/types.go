package gpu

import (
	"strconv"

	"github.com/cogentcore/webgpu/wgpu"
)

// Limits holds the device limits the renderer sizes its resources against.
type Limits struct {
	// MinUniformBufferOffsetAlignment is the required alignment of dynamic uniform offsets.
	MinUniformBufferOffsetAlignment uint32
	// MaxUniformBufferBindingSize is the largest uniform range one binding may expose.
	MaxUniformBufferBindingSize uint64
}

// ImageLayout is the access layout an image is in between GPU stages.
type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutColorAttachment
	ImageLayoutDepthAttachment
	ImageLayoutShaderReadOnly
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
	ImageLayoutPresentSrc
)

var imageLayoutNames = [...]string{
	ImageLayoutUndefined:       "UNDEFINED",
	ImageLayoutGeneral:         "GENERAL",
	ImageLayoutColorAttachment: "COLOR_ATTACHMENT",
	ImageLayoutDepthAttachment: "DEPTH_ATTACHMENT",
	ImageLayoutShaderReadOnly:  "SHADER_READ_ONLY",
	ImageLayoutTransferSrc:     "TRANSFER_SRC",
	ImageLayoutTransferDst:     "TRANSFER_DST",
	ImageLayoutPresentSrc:      "PRESENT_SRC",
}

func (l ImageLayout) String() string {
	if l >= 0 && int(l) < len(imageLayoutNames) {
		return imageLayoutNames[l]
	}
	return "ImageLayout(" + strconv.Itoa(int(l)) + ")"
}

// PipelineStage is a bit set of GPU pipeline stages used to scope barriers.
type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageVertexShader
	PipelineStageFragmentShader
	PipelineStageColorAttachmentOutput
	PipelineStageComputeShader
	PipelineStageTransfer
	PipelineStageBottomOfPipe
	PipelineStageEarlyFragmentTests
	PipelineStageLateFragmentTests
)

// Access is a bit set of memory access kinds made visible or available by a barrier.
type Access uint32

const (
	AccessNone       Access = 0
	AccessShaderRead Access = 1 << (iota - 1)
	AccessShaderWrite
	AccessColorAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
)

// ImageBarrier orders GPU work on an image and moves it between layouts.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// ShaderStage is a bit set of programmable stages.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// BindingType identifies what a descriptor binding holds.
type BindingType int

const (
	// BindingTypeUniformBuffer is a uniform buffer bound at a fixed offset.
	BindingTypeUniformBuffer BindingType = iota
	// BindingTypeDynamicUniformBuffer is a uniform buffer whose offset is supplied at bind time.
	BindingTypeDynamicUniformBuffer
	// BindingTypeSampledImage is a filterable float texture.
	BindingTypeSampledImage
	// BindingTypeSampler is a filtering sampler.
	BindingTypeSampler
	// BindingTypeStorageImage is a write-only storage texture.
	BindingTypeStorageImage
)

func (t BindingType) String() string {
	switch t {
	case BindingTypeUniformBuffer:
		return "uniform"
	case BindingTypeDynamicUniformBuffer:
		return "uniform(dynamic)"
	case BindingTypeSampledImage:
		return "texture"
	case BindingTypeSampler:
		return "sampler"
	case BindingTypeStorageImage:
		return "storage_texture"
	default:
		return "BindingType(" + strconv.Itoa(int(t)) + ")"
	}
}

// DescriptorLayoutEntry describes one binding slot of a descriptor set layout.
type DescriptorLayoutEntry struct {
	Binding uint32
	Type    BindingType
	Stages  ShaderStage
	// MinSize is the minimum buffer binding size for buffer bindings; 0 means unchecked.
	MinSize uint64
	// Format is the texel format for storage image bindings.
	Format wgpu.TextureFormat
}

// DescriptorSetLayout is the ordered list of bindings of descriptor set 0 of a program.
type DescriptorSetLayout struct {
	Entries []DescriptorLayoutEntry
}

// Entry returns the entry for binding b.
//
// Parameters:
//   - b: the binding index
//
// Returns:
//   - DescriptorLayoutEntry: the entry
//   - bool: false if no entry uses b
func (l DescriptorSetLayout) Entry(b uint32) (DescriptorLayoutEntry, bool) {
	for _, e := range l.Entries {
		if e.Binding == b {
			return e, true
		}
	}
	return DescriptorLayoutEntry{}, false
}

// DynamicOffsetCount returns the number of dynamic offsets a bind of this layout consumes.
func (l DescriptorSetLayout) DynamicOffsetCount() int {
	n := 0
	for _, e := range l.Entries {
		if e.Type == BindingTypeDynamicUniformBuffer {
			n++
		}
	}
	return n
}

// EntryPoint is one programmable-stage entry of a shader program.
type EntryPoint struct {
	Stage ShaderStage
	Name  string
	// WorkgroupSize is set for compute entry points.
	WorkgroupSize [3]uint32
}

// ShaderProgramDescriptor describes shader source plus the interface it exposes.
type ShaderProgramDescriptor struct {
	Label       string
	Source      string
	EntryPoints []EntryPoint
	Layout      DescriptorSetLayout
}

// DescriptorBinding supplies the resource for one binding of a descriptor set.
// Exactly one of Buffer, Image or Sampler is set, matching the layout entry's type.
type DescriptorBinding struct {
	Binding uint32
	Buffer  Buffer
	// Offset and Size select the buffer range; for dynamic uniform buffers Size is one block.
	Offset  uint64
	Size    uint64
	Image   Image
	Sampler Sampler
}

// ImageUsage is a bit set of the ways an image is used.
type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthAttachment
	ImageUsageTransferSrc
	ImageUsageTransferDst
)

// ImageDescriptor describes a 2D image allocation.
type ImageDescriptor struct {
	Label     string
	Width     uint32
	Height    uint32
	Format    wgpu.TextureFormat
	Usage     ImageUsage
	MipLevels uint32
}

// SamplerDescriptor describes texture sampling state. Zero values fall back to repeat
// addressing, linear filtering and a LOD clamp of [0, 32].
type SamplerDescriptor struct {
	Label        string
	AddressMode  wgpu.AddressMode
	MagFilter    wgpu.FilterMode
	MinFilter    wgpu.FilterMode
	MipmapFilter wgpu.MipmapFilterMode
	LodMaxClamp  float32
}

// RenderPassDescriptor configures the attachments of a render pass. Both attachments are cleared.
type RenderPassDescriptor struct {
	Label      string
	Color      Image
	Depth      Image
	ClearColor [4]float64
	ClearDepth float32
}
