package gpu

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRecorder records into a wgpu.CommandEncoder. Recording errors are latched: the first one
// turns every later call into a no-op and is returned from Finish.
type wgpuRecorder struct {
	ctx     *wgpuContext
	label   string
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder

	batch       *wgpuBatch
	pipeline    *wgpuPipeline
	compute     *wgpuComputePipeline
	computeSets map[uint32]*wgpuDescriptorSet
	layouts     *LayoutTracker
	transient   []*wgpu.BindGroup
	finished    bool
	err         error
}

var _ CommandRecorder = &wgpuRecorder{}

func (r *wgpuRecorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: "+format, append([]any{r.label}, args...)...)
	}
}

// ok reports whether recording may continue.
func (r *wgpuRecorder) ok() bool {
	if r.finished {
		r.fail("%w", errRecorderClosed)
		return false
	}
	return r.err == nil
}

func (r *wgpuRecorder) BeginRenderPass(desc RenderPassDescriptor) {
	if !r.ok() {
		return
	}
	if r.pass != nil {
		r.fail("render pass %q begun inside another render pass", desc.Label)
		return
	}
	color, ok := desc.Color.(*wgpuImage)
	if !ok || color.view == nil {
		r.fail("render pass %q: color attachment has no view", desc.Label)
		return
	}
	if err := r.layouts.Require(color, ImageLayoutColorAttachment); err != nil {
		r.fail("render pass %q: %w", desc.Label, err)
		return
	}

	rpd := &wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    color.view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: desc.ClearColor[0], G: desc.ClearColor[1], B: desc.ClearColor[2], A: desc.ClearColor[3],
				},
			},
		},
	}
	if desc.Depth != nil {
		depth, ok := desc.Depth.(*wgpuImage)
		if !ok || depth.view == nil {
			r.fail("render pass %q: depth attachment has no view", desc.Label)
			return
		}
		if err := r.layouts.Require(depth, ImageLayoutDepthAttachment); err != nil {
			r.fail("render pass %q: %w", desc.Label, err)
			return
		}
		rpd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: desc.ClearDepth,
		}
	}

	r.pass = r.encoder.BeginRenderPass(rpd)
	r.batch = nil
	r.pipeline = nil
}

func (r *wgpuRecorder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	if !r.ok() {
		return
	}
	if r.pass == nil {
		r.fail("set viewport outside a render pass")
		return
	}
	r.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
}

func (r *wgpuRecorder) SetScissor(x, y, width, height uint32) {
	if !r.ok() {
		return
	}
	if r.pass == nil {
		r.fail("set scissor outside a render pass")
		return
	}
	r.pass.SetScissorRect(x, y, width, height)
}

func (r *wgpuRecorder) BindBatch(b Batch) {
	if !r.ok() {
		return
	}
	batch, ok := b.(*wgpuBatch)
	if !ok || r.pass == nil {
		r.fail("bind batch %T outside a render pass or from another context", b)
		return
	}
	r.pass.SetVertexBuffer(0, batch.vertex, 0, wgpu.WholeSize)
	r.pass.SetIndexBuffer(batch.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	r.batch = batch
}

func (r *wgpuRecorder) BindPipeline(p Pipeline) {
	if !r.ok() {
		return
	}
	pl, ok := p.(*wgpuPipeline)
	if !ok || r.pass == nil {
		r.fail("bind pipeline %T outside a render pass or from another context", p)
		return
	}
	r.pass.SetPipeline(pl.pipeline)
	r.pipeline = pl
}

func (r *wgpuRecorder) BindDescriptorSet(set uint32, ds DescriptorSet, dynamicOffsets ...uint32) {
	if !r.ok() {
		return
	}
	d, ok := ds.(*wgpuDescriptorSet)
	if !ok || r.pass == nil {
		r.fail("bind descriptor set %T outside a render pass or from another context", ds)
		return
	}
	if want := d.layout.DynamicOffsetCount(); len(dynamicOffsets) != want {
		r.fail("descriptor set %q takes %d dynamic offsets, got %d", d.label, want, len(dynamicOffsets))
		return
	}
	align := r.ctx.limits.MinUniformBufferOffsetAlignment
	for _, off := range dynamicOffsets {
		if align > 0 && off%align != 0 {
			r.fail("descriptor set %q: dynamic offset %d is not a multiple of %d", d.label, off, align)
			return
		}
	}
	r.pass.SetBindGroup(set, d.bindGroup, dynamicOffsets)
}

func (r *wgpuRecorder) DrawIndexed(indexCount uint32) {
	if !r.ok() {
		return
	}
	if r.pass == nil || r.pipeline == nil || r.batch == nil {
		r.fail("draw without an open render pass, bound pipeline and bound batch")
		return
	}
	if indexCount > r.batch.indexCount {
		r.fail("draw of %d indices exceeds batch %q with %d", indexCount, r.batch.label, r.batch.indexCount)
		return
	}
	r.pass.DrawIndexed(indexCount, 1, 0, 0, 0)
}

func (r *wgpuRecorder) EndRenderPass() {
	if !r.ok() {
		return
	}
	if r.pass == nil {
		r.fail("end render pass without an open pass")
		return
	}
	r.pass.End()
	r.pass.Release()
	r.pass = nil
}

func (r *wgpuRecorder) BindComputePipeline(p ComputePipeline) {
	if !r.ok() {
		return
	}
	cp, ok := p.(*wgpuComputePipeline)
	if !ok {
		r.fail("bind compute pipeline %T from another context", p)
		return
	}
	r.compute = cp
}

func (r *wgpuRecorder) BindComputeDescriptorSet(set uint32, ds DescriptorSet) {
	if !r.ok() {
		return
	}
	d, ok := ds.(*wgpuDescriptorSet)
	if !ok {
		r.fail("bind compute descriptor set %T from another context", ds)
		return
	}
	r.computeSets[set] = d
}

func (r *wgpuRecorder) Dispatch(x, y, z uint32) {
	if !r.ok() {
		return
	}
	if r.pass != nil {
		r.fail("dispatch inside a render pass")
		return
	}
	if r.compute == nil {
		r.fail("dispatch without a compute pipeline")
		return
	}
	for _, d := range r.computeSets {
		if err := r.checkComputeImages(d); err != nil {
			r.fail("dispatch: %w", err)
			return
		}
	}

	pass := r.encoder.BeginComputePass(nil)
	pass.SetPipeline(r.compute.pipeline)
	sets := make([]uint32, 0, len(r.computeSets))
	for set := range r.computeSets {
		sets = append(sets, set)
	}
	slices.Sort(sets)
	for _, set := range sets {
		pass.SetBindGroup(set, r.computeSets[set].bindGroup, nil)
	}
	pass.DispatchWorkgroups(x, y, z)
	pass.End()
	pass.Release()
}

// checkComputeImages verifies every image bound to d is in the layout its binding type needs.
func (r *wgpuRecorder) checkComputeImages(d *wgpuDescriptorSet) error {
	for _, b := range d.bindings {
		if b.Image == nil {
			continue
		}
		entry, ok := d.layout.Entry(b.Binding)
		if !ok {
			continue
		}
		switch entry.Type {
		case BindingTypeStorageImage:
			if err := r.layouts.Require(b.Image, ImageLayoutGeneral); err != nil {
				return err
			}
		case BindingTypeSampledImage:
			if err := r.layouts.Require(b.Image, ImageLayoutShaderReadOnly); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *wgpuRecorder) ImageBarrier(b ImageBarrier) {
	if !r.ok() {
		return
	}
	if r.pass != nil {
		r.fail("image barrier inside a render pass")
		return
	}
	// WebGPU synchronizes resource usage itself; the tracker keeps recorded usage honest
	if err := r.layouts.Apply(b); err != nil {
		r.fail("%w", err)
	}
}

func (r *wgpuRecorder) BlitImage(src, dst Image, flipY bool) {
	if !r.ok() {
		return
	}
	if r.pass != nil {
		r.fail("blit inside a render pass")
		return
	}
	s, ok := src.(*wgpuImage)
	if !ok || s.view == nil {
		r.fail("blit source has no view")
		return
	}
	d, ok := dst.(*wgpuImage)
	if !ok || d.view == nil {
		r.fail("blit destination has no view")
		return
	}
	if err := r.layouts.Require(s, ImageLayoutTransferSrc); err != nil {
		r.fail("blit: %w", err)
		return
	}
	if err := r.layouts.Require(d, ImageLayoutTransferDst); err != nil {
		r.fail("blit: %w", err)
		return
	}

	blitter, err := r.ctx.blitter()
	if err != nil {
		r.fail("blit: %w", err)
		return
	}
	pl, err := blitter.pipeline(d.format, flipY)
	if err != nil {
		r.fail("blit: %w", err)
		return
	}
	bg, err := blitter.bindGroup(s)
	if err != nil {
		r.fail("blit: %w", err)
		return
	}
	r.transient = append(r.transient, bg)

	pass := r.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Blit " + s.label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    d.view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	pass.SetPipeline(pl)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
}

func (r *wgpuRecorder) Finish() (CommandBuffer, error) {
	if r.finished {
		return nil, fmt.Errorf("%s: %w", r.label, errRecorderClosed)
	}
	r.finished = true
	defer r.releaseTransient()

	if r.err == nil && r.pass != nil {
		r.fail("finish with an open render pass")
	}
	if r.err != nil {
		if r.pass != nil {
			r.pass.End()
			r.pass.Release()
			r.pass = nil
		}
		r.encoder.Release()
		return nil, r.err
	}

	buf, err := r.encoder.Finish(nil)
	r.encoder.Release()
	if err != nil {
		return nil, fmt.Errorf("%s: finish: %w", r.label, err)
	}
	return &wgpuCommandBuffer{label: r.label, buf: buf}, nil
}

func (r *wgpuRecorder) releaseTransient() {
	for _, bg := range r.transient {
		bg.Release()
	}
	r.transient = nil
}

type blitKey struct {
	format wgpu.TextureFormat
	flipY  bool
}

// wgpuBlitter draws a fullscreen triangle sampling one image into another. Pipelines are built
// per destination format and orientation on first use.
type wgpuBlitter struct {
	mu        *sync.Mutex
	device    *wgpu.Device
	module    *wgpu.ShaderModule
	bgl       *wgpu.BindGroupLayout
	layout    *wgpu.PipelineLayout
	sampler   *wgpu.Sampler
	pipelines map[blitKey]*wgpu.RenderPipeline
}

func newWGPUBlitter(device *wgpu.Device) (*wgpuBlitter, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("blit shader: %w", err)
	}

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit Set 0",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("blit layout: %w", err)
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		module.Release()
		return nil, fmt.Errorf("blit pipeline layout: %w", err)
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Blit Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		layout.Release()
		bgl.Release()
		module.Release()
		return nil, fmt.Errorf("blit sampler: %w", err)
	}

	return &wgpuBlitter{
		mu:        &sync.Mutex{},
		device:    device,
		module:    module,
		bgl:       bgl,
		layout:    layout,
		sampler:   sampler,
		pipelines: make(map[blitKey]*wgpu.RenderPipeline),
	}, nil
}

func (b *wgpuBlitter) pipeline(format wgpu.TextureFormat, flipY bool) (*wgpu.RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := blitKey{format: format, flipY: flipY}
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}
	vs := "vs_main"
	if flipY {
		vs = "vs_main_flip_y"
	}
	p, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit " + vs,
		Layout: b.layout,
		Vertex: wgpu.VertexState{
			Module:     b.module,
			EntryPoint: vs,
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blit pipeline %v: %w", format, err)
	}
	b.pipelines[key] = p
	return p, nil
}

func (b *wgpuBlitter) bindGroup(src *wgpuImage) (*wgpu.BindGroup, error) {
	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit " + src.label,
		Layout: b.bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: src.view},
			{Binding: 1, Sampler: b.sampler},
		},
	})
}

func (b *wgpuBlitter) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, k)
	}
	b.sampler.Release()
	b.layout.Release()
	b.bgl.Release()
	b.module.Release()
}
