package mock_gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// Buffer is a host-memory uniform buffer.
type Buffer struct {
	mu    *sync.Mutex
	ctx   *Context
	label string
	data  []byte

	mapped   bool
	maps     int
	released bool
}

var _ gpu.Buffer = &Buffer{}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.data)) }

func (b *Buffer) Map(offset, size uint64) ([]byte, error) {
	if err := b.ctx.failure(OpMap); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		return nil, fmt.Errorf("buffer %q is already mapped", b.label)
	}
	if err := gpu.CheckMapRange(b.Size(), offset, size); err != nil {
		return nil, fmt.Errorf("buffer %q: %w", b.label, err)
	}
	b.mapped = true
	b.maps++
	return b.data[offset : offset+size : offset+size], nil
}

func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return fmt.Errorf("buffer %q is not mapped", b.label)
	}
	b.mapped = false
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Maps returns how many times the buffer was mapped.
func (b *Buffer) Maps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maps
}

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.released {
		b.released = true
		b.ctx.untrack(KindUniformBuffer)
	}
}

// Batch holds copies of the uploaded vertex and index bytes.
type Batch struct {
	ctx        *Context
	label      string
	Vertices   []byte
	Indices    []byte
	indexCount uint32
	released   bool
}

var _ gpu.Batch = &Batch{}

func (b *Batch) Label() string       { return b.label }
func (b *Batch) IndexCount() uint32  { return b.indexCount }
func (b *Batch) VertexBytes() uint64 { return uint64(len(b.Vertices)) }
func (b *Batch) IndexBytes() uint64  { return uint64(len(b.Indices)) }

func (b *Batch) Release() {
	if !b.released {
		b.released = true
		b.ctx.untrack(KindBatch)
	}
}

// Image is a mock texture, render target or surface image.
type Image struct {
	ctx    *Context
	kind   Kind
	label  string
	width  uint32
	height uint32
	format wgpu.TextureFormat
	mips   uint32
	Usage  gpu.ImageUsage

	released bool
}

var _ gpu.Image = &Image{}

func (i *Image) Label() string              { return i.label }
func (i *Image) Width() uint32              { return i.width }
func (i *Image) Height() uint32             { return i.height }
func (i *Image) Format() wgpu.TextureFormat { return i.format }
func (i *Image) MipLevels() uint32          { return i.mips }

func (i *Image) Release() {
	if i.kind == "" || i.released {
		return
	}
	i.released = true
	i.ctx.untrack(i.kind)
}

type Sampler struct {
	ctx      *Context
	label    string
	Desc     gpu.SamplerDescriptor
	released bool
}

var _ gpu.Sampler = &Sampler{}

func (s *Sampler) Label() string { return s.label }

func (s *Sampler) Release() {
	if !s.released {
		s.released = true
		s.ctx.untrack(KindSampler)
	}
}

type pipelineLayout struct {
	label string
	sets  []gpu.DescriptorSetLayout
}

func (l *pipelineLayout) Label() string                                   { return l.label }
func (l *pipelineLayout) DescriptorSetLayouts() []gpu.DescriptorSetLayout { return l.sets }

// ShaderProgram keeps the descriptor it was created from.
type ShaderProgram struct {
	ctx      *Context
	desc     gpu.ShaderProgramDescriptor
	released bool
}

var _ gpu.ShaderProgram = &ShaderProgram{}

func (p *ShaderProgram) Label() string                                { return p.desc.Label }
func (p *ShaderProgram) DescriptorSetLayout() gpu.DescriptorSetLayout { return p.desc.Layout }
func (p *ShaderProgram) EntryPoints() []gpu.EntryPoint                { return p.desc.EntryPoints }

func (p *ShaderProgram) PipelineLayout() gpu.PipelineLayout {
	return &pipelineLayout{label: p.desc.Label, sets: []gpu.DescriptorSetLayout{p.desc.Layout}}
}

func (p *ShaderProgram) EntryPoint(stage gpu.ShaderStage) (gpu.EntryPoint, bool) {
	for _, ep := range p.desc.EntryPoints {
		if ep.Stage == stage {
			return ep, true
		}
	}
	return gpu.EntryPoint{}, false
}

// Source returns the shader source the program was created with.
func (p *ShaderProgram) Source() string { return p.desc.Source }

func (p *ShaderProgram) Release() {
	if !p.released {
		p.released = true
		p.ctx.untrack(KindShaderProgram)
	}
}

type Pipeline struct {
	ctx         *Context
	label       string
	program     gpu.ShaderProgram
	layout      common.VertexLayout
	state       pipeline.FixedFunctionState
	ColorFormat wgpu.TextureFormat
	DepthFormat wgpu.TextureFormat
	released    bool
}

var _ gpu.Pipeline = &Pipeline{}

func (p *Pipeline) Label() string                      { return p.label }
func (p *Pipeline) Program() gpu.ShaderProgram         { return p.program }
func (p *Pipeline) VertexLayout() common.VertexLayout  { return p.layout }
func (p *Pipeline) State() pipeline.FixedFunctionState { return p.state }

func (p *Pipeline) Release() {
	if !p.released {
		p.released = true
		p.ctx.untrack(KindPipeline)
	}
}

type ComputePipeline struct {
	ctx       *Context
	label     string
	program   gpu.ShaderProgram
	workgroup [3]uint32
	released  bool
}

var _ gpu.ComputePipeline = &ComputePipeline{}

func (p *ComputePipeline) Label() string              { return p.label }
func (p *ComputePipeline) Program() gpu.ShaderProgram { return p.program }
func (p *ComputePipeline) WorkgroupSize() [3]uint32   { return p.workgroup }

func (p *ComputePipeline) Release() {
	if !p.released {
		p.released = true
		p.ctx.untrack(KindComputePipeline)
	}
}

// DescriptorSet keeps its validated bindings for inspection.
type DescriptorSet struct {
	ctx      *Context
	label    string
	layout   gpu.DescriptorSetLayout
	Bindings []gpu.DescriptorBinding
	released bool
}

var _ gpu.DescriptorSet = &DescriptorSet{}

func (d *DescriptorSet) Label() string                   { return d.label }
func (d *DescriptorSet) Layout() gpu.DescriptorSetLayout { return d.layout }

func (d *DescriptorSet) Release() {
	if !d.released {
		d.released = true
		d.ctx.untrack(KindDescriptorSet)
	}
}
