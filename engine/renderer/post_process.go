package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Scene target formats. The scene renders into ColorTargetFormat with DepthTargetFormat depth;
// the post-process compute pass writes PostTargetFormat, which is blitted to the surface.
const (
	ColorTargetFormat = wgpu.TextureFormatRGBA16Float
	DepthTargetFormat = wgpu.TextureFormatDepth24Plus
	PostTargetFormat  = wgpu.TextureFormatRGBA16Float
)

// PostProcessParams is the GPU-aligned uniform of the post-process shader.
// Matches the WGSL PostParams struct (16 bytes).
type PostProcessParams struct {
	Exposure float32 // offset 0
	Vignette float32 // offset 4
	Width    uint32  // offset 8
	Height   uint32  // offset 12
}

// Marshal serializes the params into a 16-byte buffer.
//
// Returns:
//   - []byte: the serialized params
func (p PostProcessParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.Exposure))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Vignette))
	binary.LittleEndian.PutUint32(buf[8:12], p.Width)
	binary.LittleEndian.PutUint32(buf[12:16], p.Height)
	return buf
}

// postProcess is the implementation of the PostProcess interface.
type postProcess struct {
	mu *sync.Mutex

	ctx    gpu.GraphicsContext
	shader shader.Shader

	width  uint32
	height uint32
	params PostProcessParams

	color     gpu.Image
	depth     gpu.Image
	output    gpu.Image
	sampler   gpu.Sampler
	paramsBuf gpu.Buffer
	program   gpu.ShaderProgram
	pipeline  gpu.ComputePipeline
	set       gpu.DescriptorSet
}

// PostProcess owns the offscreen scene targets and the compute pass that tone-maps the scene
// color into a storage image before it is blitted to the presentable image.
type PostProcess interface {
	// ColorTarget returns the image the scene pass renders into.
	ColorTarget() gpu.Image

	// DepthTarget returns the scene pass depth attachment.
	DepthTarget() gpu.Image

	// OutputTarget returns the storage image the compute pass writes.
	OutputTarget() gpu.Image

	// Extent returns the size of every target.
	Extent() (width, height uint32)

	// Exposure returns the current exposure multiplier.
	Exposure() float32

	// SetExposure updates the exposure multiplier used by later frames.
	//
	// Parameters:
	//   - exposure: the new multiplier
	//
	// Returns:
	//   - error: an error if the params buffer cannot be written
	SetExposure(exposure float32) error

	// Record appends the post-process commands after the scene pass: the color target moves to
	// shader-read, the compute pass fills the output target, and the output is blitted into
	// swap, which ends in the present layout.
	//
	// Parameters:
	//   - rec: the frame's recorder, outside any render pass
	//   - swap: the acquired presentable image
	Record(rec gpu.CommandRecorder, swap gpu.Image)

	// Release frees every target and the compute pipeline.
	Release()
}

// Ensure postProcess implements PostProcess interface.
var _ PostProcess = &postProcess{}

// NewPostProcess creates the scene targets at width x height and the compute pipeline.
//
// Parameters:
//   - ctx: the graphics context
//   - width: the target width in pixels
//   - height: the target height in pixels
//   - options: functional options to configure the pass
//
// Returns:
//   - PostProcess: the post-process stage
//   - error: the first creation error; nothing is leaked on failure
func NewPostProcess(ctx gpu.GraphicsContext, width, height uint32, options ...PostProcessBuilderOption) (PostProcess, error) {
	pp := &postProcess{
		mu:     &sync.Mutex{},
		ctx:    ctx,
		width:  width,
		height: height,
		params: PostProcessParams{Exposure: 1, Vignette: 0.35, Width: width, Height: height},
	}
	for _, opt := range options {
		opt(pp)
	}

	if err := pp.build(); err != nil {
		pp.Release()
		return nil, fmt.Errorf("post process: %w", err)
	}
	common.Logger().Info("post process created", "width", width, "height", height, "exposure", pp.params.Exposure)
	return pp, nil
}

func (pp *postProcess) build() error {
	if pp.shader == nil {
		s, err := shader.Builtin(shader.KeyPostProcess)
		if err != nil {
			return err
		}
		pp.shader = s
	}
	if _, ok := pp.shader.EntryPoint(gpu.ShaderStageCompute); !ok {
		return fmt.Errorf("shader %q has no compute stage", pp.shader.Key())
	}

	var err error
	if pp.color, err = pp.ctx.CreateImage(gpu.ImageDescriptor{
		Label:  "Scene Color Target",
		Width:  pp.width,
		Height: pp.height,
		Format: ColorTargetFormat,
		Usage:  gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled,
	}); err != nil {
		return err
	}
	if pp.depth, err = pp.ctx.CreateImage(gpu.ImageDescriptor{
		Label:  "Scene Depth Target",
		Width:  pp.width,
		Height: pp.height,
		Format: DepthTargetFormat,
		Usage:  gpu.ImageUsageDepthAttachment,
	}); err != nil {
		return err
	}
	if pp.output, err = pp.ctx.CreateImage(gpu.ImageDescriptor{
		Label:  "Post Process Target",
		Width:  pp.width,
		Height: pp.height,
		Format: PostTargetFormat,
		Usage:  gpu.ImageUsageStorage | gpu.ImageUsageTransferSrc | gpu.ImageUsageSampled,
	}); err != nil {
		return err
	}
	if pp.sampler, err = pp.ctx.CreateSampler(gpu.SamplerDescriptor{
		Label:       "Post Process Sampler",
		AddressMode: wgpu.AddressModeClampToEdge,
	}); err != nil {
		return err
	}

	data := pp.params.Marshal()
	if pp.paramsBuf, err = pp.ctx.CreateUniformBuffer("Post Process Params", uint64(len(data))); err != nil {
		return err
	}
	if err = pp.writeParams(); err != nil {
		return err
	}

	desc := pp.shader.Descriptor()
	desc.Label = "Post Process"
	if pp.program, err = pp.ctx.CreateShaderProgram(desc); err != nil {
		return err
	}
	if pp.pipeline, err = pp.ctx.CreateComputePipeline(pp.program); err != nil {
		return err
	}

	bindings, err := pp.bindings()
	if err != nil {
		return err
	}
	pp.set, err = pp.ctx.CreateDescriptorSet("Post Process Descriptor Set", pp.program, bindings)
	return err
}

// bindings resolves each layout entry by type; the sampled image is the scene color target and
// the storage image is the output target.
func (pp *postProcess) bindings() ([]gpu.DescriptorBinding, error) {
	layout := pp.program.DescriptorSetLayout()
	out := make([]gpu.DescriptorBinding, 0, len(layout.Entries))
	for _, e := range layout.Entries {
		b := gpu.DescriptorBinding{Binding: e.Binding}
		switch e.Type {
		case gpu.BindingTypeSampledImage:
			b.Image = pp.color
		case gpu.BindingTypeSampler:
			b.Sampler = pp.sampler
		case gpu.BindingTypeStorageImage:
			if e.Format != PostTargetFormat {
				return nil, fmt.Errorf("binding %d: storage format %v, want %v", e.Binding, e.Format, PostTargetFormat)
			}
			b.Image = pp.output
		case gpu.BindingTypeUniformBuffer:
			b.Buffer = pp.paramsBuf
			b.Size = pp.paramsBuf.Size()
		default:
			return nil, fmt.Errorf("binding %d: %v is not supported for post processing", e.Binding, e.Type)
		}
		out = append(out, b)
	}
	return out, nil
}

func (pp *postProcess) writeParams() error {
	data := pp.params.Marshal()
	dst, err := pp.paramsBuf.Map(0, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return pp.paramsBuf.Unmap()
}

func (pp *postProcess) ColorTarget() gpu.Image {
	return pp.color
}

func (pp *postProcess) DepthTarget() gpu.Image {
	return pp.depth
}

func (pp *postProcess) OutputTarget() gpu.Image {
	return pp.output
}

func (pp *postProcess) Extent() (uint32, uint32) {
	return pp.width, pp.height
}

func (pp *postProcess) Exposure() float32 {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.params.Exposure
}

func (pp *postProcess) SetExposure(exposure float32) error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.params.Exposure == exposure {
		return nil
	}
	pp.params.Exposure = exposure
	if err := pp.writeParams(); err != nil {
		return fmt.Errorf("post process: %w", err)
	}
	common.Logger().Debug("post process exposure changed", "exposure", exposure)
	return nil
}

func (pp *postProcess) Record(rec gpu.CommandRecorder, swap gpu.Image) {
	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     pp.color,
		OldLayout: gpu.ImageLayoutColorAttachment,
		NewLayout: gpu.ImageLayoutShaderReadOnly,
		SrcStage:  gpu.PipelineStageColorAttachmentOutput,
		DstStage:  gpu.PipelineStageComputeShader,
		SrcAccess: gpu.AccessColorAttachmentWrite,
		DstAccess: gpu.AccessShaderRead,
	})
	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     pp.output,
		OldLayout: gpu.ImageLayoutUndefined,
		NewLayout: gpu.ImageLayoutGeneral,
		SrcStage:  gpu.PipelineStageTransfer, // the previous frame's blit read
		DstStage:  gpu.PipelineStageComputeShader,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessShaderWrite,
	})

	wg := pp.pipeline.WorkgroupSize()
	rec.BindComputePipeline(pp.pipeline)
	rec.BindComputeDescriptorSet(0, pp.set)
	rec.Dispatch(common.DivCeil(pp.width, max(wg[0], 1)), common.DivCeil(pp.height, max(wg[1], 1)), 1)

	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     pp.output,
		OldLayout: gpu.ImageLayoutGeneral,
		NewLayout: gpu.ImageLayoutTransferSrc,
		SrcStage:  gpu.PipelineStageComputeShader,
		DstStage:  gpu.PipelineStageTransfer,
		SrcAccess: gpu.AccessShaderWrite,
		DstAccess: gpu.AccessTransferRead,
	})
	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     swap,
		OldLayout: gpu.ImageLayoutUndefined,
		NewLayout: gpu.ImageLayoutTransferDst,
		SrcStage:  gpu.PipelineStageTopOfPipe,
		DstStage:  gpu.PipelineStageTransfer,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessTransferWrite,
	})

	// The camera projection renders upside down; the blit restores the orientation.
	rec.BlitImage(pp.output, swap, true)

	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     swap,
		OldLayout: gpu.ImageLayoutTransferDst,
		NewLayout: gpu.ImageLayoutPresentSrc,
		SrcStage:  gpu.PipelineStageTransfer,
		DstStage:  gpu.PipelineStageBottomOfPipe,
		SrcAccess: gpu.AccessTransferWrite,
		DstAccess: gpu.AccessNone,
	})
}

func (pp *postProcess) Release() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.set != nil {
		pp.set.Release()
		pp.set = nil
	}
	if pp.pipeline != nil {
		pp.pipeline.Release()
		pp.pipeline = nil
	}
	if pp.program != nil {
		pp.program.Release()
		pp.program = nil
	}
	if pp.paramsBuf != nil {
		pp.paramsBuf.Release()
		pp.paramsBuf = nil
	}
	if pp.sampler != nil {
		pp.sampler.Release()
		pp.sampler = nil
	}
	for _, img := range []*gpu.Image{&pp.output, &pp.depth, &pp.color} {
		if *img != nil {
			(*img).Release()
			*img = nil
		}
	}
}
