package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBuffer is a uniform buffer with a CPU staging copy. Map hands out a range of the
// staging copy; Unmap flushes that range with Queue.WriteBuffer.
type wgpuBuffer struct {
	mu      *sync.Mutex
	label   string
	buf     *wgpu.Buffer
	queue   *wgpu.Queue
	staging []byte

	mapped          bool
	mapOff, mapSize uint64
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return uint64(len(b.staging)) }

func (b *wgpuBuffer) Map(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped {
		return nil, fmt.Errorf("buffer %q is already mapped", b.label)
	}
	if err := CheckMapRange(b.Size(), offset, size); err != nil {
		return nil, fmt.Errorf("buffer %q: %w", b.label, err)
	}
	b.mapped = true
	b.mapOff, b.mapSize = offset, size
	return b.staging[offset : offset+size : offset+size], nil
}

func (b *wgpuBuffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.mapped {
		return fmt.Errorf("buffer %q is not mapped", b.label)
	}
	b.mapped = false
	if err := b.queue.WriteBuffer(b.buf, b.mapOff, b.staging[b.mapOff:b.mapOff+b.mapSize]); err != nil {
		return fmt.Errorf("buffer %q: flush: %w", b.label, err)
	}
	return nil
}

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type wgpuBatch struct {
	label       string
	vertex      *wgpu.Buffer
	index       *wgpu.Buffer
	indexCount  uint32
	vertexBytes uint64
	indexBytes  uint64
}

var _ Batch = &wgpuBatch{}

func (b *wgpuBatch) Label() string       { return b.label }
func (b *wgpuBatch) IndexCount() uint32  { return b.indexCount }
func (b *wgpuBatch) VertexBytes() uint64 { return b.vertexBytes }
func (b *wgpuBatch) IndexBytes() uint64  { return b.indexBytes }

func (b *wgpuBatch) Release() {
	if b.vertex != nil {
		b.vertex.Release()
		b.vertex = nil
	}
	if b.index != nil {
		b.index.Release()
		b.index = nil
	}
}

// wgpuImage wraps a texture and its default view. Surface images are rebound every frame
// through setFrame and are not owned by the image.
type wgpuImage struct {
	label         string
	tex           *wgpu.Texture
	view          *wgpu.TextureView
	width, height uint32
	format        wgpu.TextureFormat
	mips          uint32
	owned         bool
}

var _ Image = &wgpuImage{}

func (i *wgpuImage) Label() string              { return i.label }
func (i *wgpuImage) Width() uint32              { return i.width }
func (i *wgpuImage) Height() uint32             { return i.height }
func (i *wgpuImage) Format() wgpu.TextureFormat { return i.format }
func (i *wgpuImage) MipLevels() uint32          { return i.mips }

func (i *wgpuImage) Release() {
	if !i.owned {
		return
	}
	if i.view != nil {
		i.view.Release()
		i.view = nil
	}
	if i.tex != nil {
		i.tex.Release()
		i.tex = nil
	}
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

var _ Sampler = &wgpuSampler{}

func (s *wgpuSampler) Label() string { return s.label }

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuPipelineLayout struct {
	label   string
	layout  *wgpu.PipelineLayout
	sets    []DescriptorSetLayout
	bindGLs []*wgpu.BindGroupLayout
}

var _ PipelineLayout = &wgpuPipelineLayout{}

func (l *wgpuPipelineLayout) Label() string                               { return l.label }
func (l *wgpuPipelineLayout) DescriptorSetLayouts() []DescriptorSetLayout { return l.sets }

type wgpuShaderProgram struct {
	label       string
	module      *wgpu.ShaderModule
	layout      *wgpuPipelineLayout
	entryPoints []EntryPoint
}

var _ ShaderProgram = &wgpuShaderProgram{}

func (p *wgpuShaderProgram) Label() string                            { return p.label }
func (p *wgpuShaderProgram) PipelineLayout() PipelineLayout           { return p.layout }
func (p *wgpuShaderProgram) DescriptorSetLayout() DescriptorSetLayout { return p.layout.sets[0] }
func (p *wgpuShaderProgram) EntryPoints() []EntryPoint                { return p.entryPoints }

func (p *wgpuShaderProgram) EntryPoint(stage ShaderStage) (EntryPoint, bool) {
	return findEntryPoint(p.entryPoints, stage)
}

func (p *wgpuShaderProgram) Release() {
	if p.layout.layout != nil {
		p.layout.layout.Release()
		p.layout.layout = nil
	}
	for _, bgl := range p.layout.bindGLs {
		bgl.Release()
	}
	p.layout.bindGLs = nil
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

// findEntryPoint returns the first entry point whose stage intersects stage.
func findEntryPoint(eps []EntryPoint, stage ShaderStage) (EntryPoint, bool) {
	for _, ep := range eps {
		if ep.Stage&stage != 0 {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

type wgpuPipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
	program  ShaderProgram
	layout   common.VertexLayout
	state    pipeline.FixedFunctionState
}

var _ Pipeline = &wgpuPipeline{}

func (p *wgpuPipeline) Label() string                      { return p.label }
func (p *wgpuPipeline) Program() ShaderProgram             { return p.program }
func (p *wgpuPipeline) VertexLayout() common.VertexLayout  { return p.layout }
func (p *wgpuPipeline) State() pipeline.FixedFunctionState { return p.state }

func (p *wgpuPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

type wgpuComputePipeline struct {
	label     string
	pipeline  *wgpu.ComputePipeline
	program   ShaderProgram
	workgroup [3]uint32
}

var _ ComputePipeline = &wgpuComputePipeline{}

func (p *wgpuComputePipeline) Label() string            { return p.label }
func (p *wgpuComputePipeline) Program() ShaderProgram   { return p.program }
func (p *wgpuComputePipeline) WorkgroupSize() [3]uint32 { return p.workgroup }

func (p *wgpuComputePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

type wgpuDescriptorSet struct {
	label     string
	bindGroup *wgpu.BindGroup
	layout    DescriptorSetLayout
	bindings  []DescriptorBinding
}

var _ DescriptorSet = &wgpuDescriptorSet{}

func (d *wgpuDescriptorSet) Label() string               { return d.label }
func (d *wgpuDescriptorSet) Layout() DescriptorSetLayout { return d.layout }

func (d *wgpuDescriptorSet) Release() {
	if d.bindGroup != nil {
		d.bindGroup.Release()
		d.bindGroup = nil
	}
}

// toWGPUStages converts a ShaderStage bit set into WebGPU visibility flags.
func toWGPUStages(s ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

// toWGPULayoutEntries builds the bind group layout entries for a descriptor set layout.
func toWGPULayoutEntries(l DescriptorSetLayout) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, len(l.Entries))
	for i, e := range l.Entries {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: toWGPUStages(e.Stages),
		}
		switch e.Type {
		case BindingTypeUniformBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
			entry.Buffer.MinBindingSize = e.MinSize
		case BindingTypeDynamicUniformBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
			entry.Buffer.HasDynamicOffset = true
			entry.Buffer.MinBindingSize = e.MinSize
		case BindingTypeSampledImage:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case BindingTypeSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case BindingTypeStorageImage:
			entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
			entry.StorageTexture.Format = e.Format
			entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
		}
		entries[i] = entry
	}
	return entries
}

// toWGPUVertexFormat maps a common.VertexFormat to its WebGPU equivalent.
func toWGPUVertexFormat(f common.VertexFormat) (wgpu.VertexFormat, error) {
	switch f {
	case common.VertexFormatFloat32:
		return wgpu.VertexFormatFloat32, nil
	case common.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2, nil
	case common.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3, nil
	case common.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4, nil
	case common.VertexFormatUint32:
		return wgpu.VertexFormatUint32, nil
	case common.VertexFormatUint32x4:
		return wgpu.VertexFormatUint32x4, nil
	case common.VertexFormatUnorm8x4:
		return wgpu.VertexFormatUnorm8x4, nil
	default:
		return 0, fmt.Errorf("unsupported vertex format %v", f)
	}
}

// toWGPUVertexBufferLayout converts a vertex layout into the single buffer layout the pipeline reads.
func toWGPUVertexBufferLayout(l common.VertexLayout) (wgpu.VertexBufferLayout, error) {
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		f, err := toWGPUVertexFormat(a.Format)
		if err != nil {
			return wgpu.VertexBufferLayout{}, err
		}
		attrs[i] = wgpu.VertexAttribute{
			Format:         f,
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

// toWGPUTextureUsage maps ImageUsage bits to WebGPU texture usage.
func toWGPUTextureUsage(u ImageUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&ImageUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&ImageUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&(ImageUsageColorAttachment|ImageUsageDepthAttachment) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&ImageUsageTransferSrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&ImageUsageTransferDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}
