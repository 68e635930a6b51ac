package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	_ "embed"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/blit.wgsl
var blitShaderSource string

// wgpuContext is the WebGPU implementation of GraphicsContext.
type wgpuContext struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	limits  Limits
	q       *wgpuQueue
	surface *wgpuSurface
	blit    *wgpuBlitter

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	imageCount           int
	label                string
}

var _ GraphicsContext = &wgpuContext{}

// NewWGPUContext creates the WebGPU instance, adapter, device and presentation surface and
// configures the surface at the given extent. The calling goroutine is locked to its OS thread
// since surface operations must stay on the thread that created the window.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, e.g. from the window package
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//   - options: functional options to configure the context
//
// Returns:
//   - GraphicsContext: the new context
//   - error: an error if any device object could not be created
func NewWGPUContext(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height uint32, options ...ContextBuilderOption) (GraphicsContext, error) {
	runtime.LockOSThread()
	c := &wgpuContext{
		mu:          &sync.Mutex{},
		presentMode: PresentModeVSync,
		imageCount:  3,
		label:       "Main Device",
	}
	for _, opt := range options {
		opt(c)
	}

	c.instance = wgpu.CreateInstance(nil)
	surface := c.instance.CreateSurface(surfaceDescriptor)

	a, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: c.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		surface.Release()
		c.instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	c.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: c.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		surface.Release()
		c.adapter.Release()
		c.instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	c.device = d
	c.queue = d.GetQueue()
	c.q = &wgpuQueue{device: d, queue: c.queue}

	supported := d.GetLimits()
	c.limits = Limits{
		MinUniformBufferOffsetAlignment: supported.Limits.MinUniformBufferOffsetAlignment,
		MaxUniformBufferBindingSize:     supported.Limits.MaxUniformBufferBindingSize,
	}

	c.surface = newWGPUSurface(surface, a, d, c.presentMode, c.imageCount)
	if err := c.surface.Configure(width, height); err != nil {
		c.Release()
		return nil, err
	}

	common.Logger().Info("graphics context ready",
		"device", c.label,
		"surface_format", c.surface.format,
		"present_mode", c.presentMode,
		"images", c.imageCount,
		"min_uniform_alignment", c.limits.MinUniformBufferOffsetAlignment)
	return c, nil
}

func (c *wgpuContext) Limits() Limits   { return c.limits }
func (c *wgpuContext) Queue() Queue     { return c.q }
func (c *wgpuContext) Surface() Surface { return c.surface }

func (c *wgpuContext) CreateBatch(label string, vertexData, indexData []byte, indexCount uint32) (Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(vertexData) == 0 || len(indexData) == 0 {
		return nil, fmt.Errorf("batch %q: vertex and index data are required", label)
	}
	if uint64(indexCount)*4 != uint64(len(indexData)) {
		return nil, fmt.Errorf("batch %q: %d index bytes do not hold %d uint32 indices", label, len(indexData), indexCount)
	}

	vb, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("batch %q: vertex buffer: %w", label, err)
	}
	if err := c.queue.WriteBuffer(vb, 0, vertexData); err != nil {
		vb.Release()
		return nil, fmt.Errorf("batch %q: vertex upload: %w", label, err)
	}

	ib, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("batch %q: index buffer: %w", label, err)
	}
	if err := c.queue.WriteBuffer(ib, 0, indexData); err != nil {
		vb.Release()
		ib.Release()
		return nil, fmt.Errorf("batch %q: index upload: %w", label, err)
	}

	return &wgpuBatch{
		label:       label,
		vertex:      vb,
		index:       ib,
		indexCount:  indexCount,
		vertexBytes: uint64(len(vertexData)),
		indexBytes:  uint64(len(indexData)),
	}, nil
}

func (c *wgpuContext) CreateUniformBuffer(label string, size uint64) (Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size == 0 {
		return nil, fmt.Errorf("uniform buffer %q: size must be positive", label)
	}
	// WriteBuffer transfers whole 4-byte words
	size = common.AlignSize(size, 4)
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform buffer %q: %w", label, err)
	}
	return &wgpuBuffer{
		mu:      &sync.Mutex{},
		label:   label,
		buf:     buf,
		queue:   c.queue,
		staging: make([]byte, size),
	}, nil
}

func (c *wgpuContext) CreateTexture(label string, data common.TextureStagingData) (Image, error) {
	if len(data.Levels) == 0 {
		return nil, fmt.Errorf("texture %q: no pixel data", label)
	}
	img, err := c.CreateImage(ImageDescriptor{
		Label:     label,
		Width:     data.Width(),
		Height:    data.Height(),
		Format:    wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:     ImageUsageSampled | ImageUsageTransferDst,
		MipLevels: uint32(len(data.Levels)),
	})
	if err != nil {
		return nil, err
	}
	tex := img.(*wgpuImage)

	for level, l := range data.Levels {
		if uint64(len(l.Pixels)) != uint64(l.Width)*uint64(l.Height)*4 {
			img.Release()
			return nil, fmt.Errorf("texture %q: level %d has %d bytes for %dx%d RGBA8", label, level, len(l.Pixels), l.Width, l.Height)
		}
		c.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex.tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			l.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  l.Width * 4,
				RowsPerImage: l.Height,
			},
			&wgpu.Extent3D{
				Width:              l.Width,
				Height:             l.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}
	return img, nil
}

func (c *wgpuContext) CreateImage(desc ImageDescriptor) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("image %q: extent %dx%d is empty", desc.Label, desc.Width, desc.Height)
	}
	mips := max(desc.MipLevels, 1)
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     toWGPUTextureUsage(desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        desc.Format,
		MipLevelCount: mips,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("image %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("image %q: view: %w", desc.Label, err)
	}
	return &wgpuImage{
		label:  desc.Label,
		tex:    tex,
		view:   view,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		mips:   mips,
		owned:  true,
	}, nil
}

func (c *wgpuContext) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	address := common.Coalesce(desc.AddressMode, wgpu.AddressModeRepeat)
	samp, err := c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     common.Coalesce(desc.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(desc.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(desc.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   0,
		LodMaxClamp:   common.Coalesce(desc.LodMaxClamp, 32.0),
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{label: desc.Label, sampler: samp}, nil
}

func (c *wgpuContext) CreateShaderProgram(desc ShaderProgramDescriptor) (ShaderProgram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(desc.EntryPoints) == 0 {
		return nil, fmt.Errorf("shader program %q: no entry points", desc.Label)
	}

	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader program %q: module: %w", desc.Label, err)
	}

	bgl, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label + " Set 0",
		Entries: toWGPULayoutEntries(desc.Layout),
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("shader program %q: descriptor set layout: %w", desc.Label, err)
	}

	layout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		module.Release()
		return nil, fmt.Errorf("shader program %q: pipeline layout: %w", desc.Label, err)
	}

	return &wgpuShaderProgram{
		label:  desc.Label,
		module: module,
		layout: &wgpuPipelineLayout{
			label:   desc.Label,
			layout:  layout,
			sets:    []DescriptorSetLayout{desc.Layout},
			bindGLs: []*wgpu.BindGroupLayout{bgl},
		},
		entryPoints: desc.EntryPoints,
	}, nil
}

func (c *wgpuContext) CreateGraphicsPipeline(program ShaderProgram, layout common.VertexLayout, state pipeline.FixedFunctionState, colorFormat, depthFormat wgpu.TextureFormat) (Pipeline, error) {
	prog, ok := program.(*wgpuShaderProgram)
	if !ok {
		return nil, fmt.Errorf("graphics pipeline: program %T was not created by this context", program)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("graphics pipeline %q: %w", prog.label, err)
	}
	vs, ok := prog.EntryPoint(ShaderStageVertex)
	if !ok {
		return nil, fmt.Errorf("graphics pipeline %q: program has no vertex entry point", prog.label)
	}
	fs, ok := prog.EntryPoint(ShaderStageFragment)
	if !ok {
		return nil, fmt.Errorf("graphics pipeline %q: program has no fragment entry point", prog.label)
	}
	vbl, err := toWGPUVertexBufferLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("graphics pipeline %q: %w", prog.label, err)
	}

	targets := make([]wgpu.ColorTargetState, state.ColorAttachmentCount)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{
			Format:    colorFormat,
			WriteMask: state.WriteMask,
		}
		if state.BlendEnabled {
			targets[i].Blend = state.BlendState
		}
	}

	var depthStencil *wgpu.DepthStencilState
	if depthFormat != wgpu.TextureFormatUndefined {
		depthStencil = &wgpu.DepthStencilState{
			Format:              depthFormat,
			DepthWriteEnabled:   state.DepthWriteEnabled,
			DepthCompare:        state.EffectiveDepthCompare(),
			DepthBias:           state.DepthBias,
			DepthBiasSlopeScale: state.DepthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	label := prog.label + " [" + layout.Key() + "]"

	c.mu.Lock()
	defer c.mu.Unlock()

	created, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: prog.layout.layout,
		Vertex: wgpu.VertexState{
			Module:     prog.module,
			EntryPoint: vs.Name,
			Buffers:    []wgpu.VertexBufferLayout{vbl},
		},
		Fragment: &wgpu.FragmentState{
			Module:     prog.module,
			EntryPoint: fs.Name,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  state.Topology,
			FrontFace: state.FrontFace,
			CullMode:  state.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("graphics pipeline %q: %w", label, err)
	}

	return &wgpuPipeline{
		label:    label,
		pipeline: created,
		program:  program,
		layout:   layout,
		state:    state,
	}, nil
}

func (c *wgpuContext) CreateComputePipeline(program ShaderProgram) (ComputePipeline, error) {
	prog, ok := program.(*wgpuShaderProgram)
	if !ok {
		return nil, fmt.Errorf("compute pipeline: program %T was not created by this context", program)
	}
	cs, ok := prog.EntryPoint(ShaderStageCompute)
	if !ok {
		return nil, fmt.Errorf("compute pipeline %q: program has no compute entry point", prog.label)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	created, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  prog.label + " Compute Pipeline",
		Layout: prog.layout.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     prog.module,
			EntryPoint: cs.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %q: %w", prog.label, err)
	}
	return &wgpuComputePipeline{
		label:     prog.label + " Compute Pipeline",
		pipeline:  created,
		program:   program,
		workgroup: cs.WorkgroupSize,
	}, nil
}

func (c *wgpuContext) CreateDescriptorSet(label string, program ShaderProgram, bindings []DescriptorBinding) (DescriptorSet, error) {
	prog, ok := program.(*wgpuShaderProgram)
	if !ok {
		return nil, fmt.Errorf("descriptor set %q: program %T was not created by this context", label, program)
	}
	layout := prog.DescriptorSetLayout()
	if err := ValidateDescriptorBindings(layout, bindings); err != nil {
		return nil, fmt.Errorf("descriptor set %q: %w", label, err)
	}

	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		entry := wgpu.BindGroupEntry{Binding: b.Binding}
		switch {
		case b.Buffer != nil:
			buf, ok := b.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("descriptor set %q: buffer %T was not created by this context", label, b.Buffer)
			}
			entry.Buffer = buf.buf
			entry.Offset = b.Offset
			entry.Size = b.Size
		case b.Image != nil:
			img, ok := b.Image.(*wgpuImage)
			if !ok || img.view == nil {
				return nil, fmt.Errorf("descriptor set %q: image %q has no view", label, b.Image.Label())
			}
			entry.TextureView = img.view
		case b.Sampler != nil:
			samp, ok := b.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("descriptor set %q: sampler %T was not created by this context", label, b.Sampler)
			}
			entry.Sampler = samp.sampler
		}
		entries[i] = entry
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  prog.layout.bindGLs[0],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor set %q: %w", label, err)
	}
	return &wgpuDescriptorSet{label: label, bindGroup: bg, layout: layout, bindings: bindings}, nil
}

func (c *wgpuContext) CreateFence(signaled bool) (Fence, error) {
	f := &wgpuFence{device: c.device}
	f.signaled.Store(signaled)
	return f, nil
}

func (c *wgpuContext) CreateSemaphore(label string) (Semaphore, error) {
	return &wgpuSemaphore{label: label}, nil
}

func (c *wgpuContext) CreateCommandRecorder(label string) (CommandRecorder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoder, err := c.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("command recorder %q: %w", label, err)
	}
	return &wgpuRecorder{
		ctx:         c,
		label:       label,
		encoder:     encoder,
		computeSets: make(map[uint32]*wgpuDescriptorSet),
		layouts:     NewLayoutTracker(),
	}, nil
}

// blitter returns the lazily built fullscreen copy pipelines.
func (c *wgpuContext) blitter() (*wgpuBlitter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blit == nil {
		b, err := newWGPUBlitter(c.device)
		if err != nil {
			return nil, err
		}
		c.blit = b
	}
	return c.blit, nil
}

func (c *wgpuContext) Release() {
	if c.blit != nil {
		c.blit.release()
		c.blit = nil
	}
	if c.surface != nil {
		c.surface.release()
		c.surface = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// errRecorderClosed is reported by recording calls made after Finish.
var errRecorderClosed = errors.New("command recorder already finished")
