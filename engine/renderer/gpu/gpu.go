// Package gpu is the explicit graphics context the renderer is built on. It exposes the queue,
// synchronization primitives, resource factories, a command recorder and the presentation
// surface as interfaces, so frame logic can run against the WebGPU implementation in this
// package or against the recording mock in mock_gpu.
package gpu

import (
	"errors"
	"math"
	"time"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// WaitForever makes Fence.Wait block until the fence signals.
const WaitForever time.Duration = math.MaxInt64

var (
	// ErrFenceTimeout is returned by Fence.Wait when the timeout elapses first.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")
	// ErrSurfaceLost is returned when the presentation surface can no longer provide images.
	ErrSurfaceLost = errors.New("gpu: surface lost")
)

// Buffer is a GPU buffer the host can write through a mapped range.
type Buffer interface {
	Label() string
	Size() uint64

	// Map exposes bytes [offset, offset+size) for host writes until Unmap.
	// Only one range may be mapped at a time.
	//
	// Parameters:
	//   - offset: the first byte of the range
	//   - size: the length of the range
	//
	// Returns:
	//   - []byte: the writable range
	//   - error: an error if the range is out of bounds or already mapped
	Map(offset, size uint64) ([]byte, error)

	// Unmap ends host access and makes the written range visible to the GPU.
	Unmap() error

	Release()
}

// Batch is a GPU-resident vertex and index buffer pair for one mesh.
type Batch interface {
	Label() string
	IndexCount() uint32
	VertexBytes() uint64
	IndexBytes() uint64
	Release()
}

// PipelineLayout is the opaque layout shared by every pipeline created from a program.
type PipelineLayout interface {
	Label() string
	DescriptorSetLayouts() []DescriptorSetLayout
}

// ShaderProgram is compiled shader source plus its descriptor set and pipeline layouts.
type ShaderProgram interface {
	Label() string
	PipelineLayout() PipelineLayout
	DescriptorSetLayout() DescriptorSetLayout
	EntryPoints() []EntryPoint

	// EntryPoint returns the entry point for stage.
	//
	// Parameters:
	//   - stage: the single stage to look up
	//
	// Returns:
	//   - EntryPoint: the entry point
	//   - bool: false if the program has no entry point for stage
	EntryPoint(stage ShaderStage) (EntryPoint, bool)

	Release()
}

// Pipeline is a graphics pipeline state object.
type Pipeline interface {
	Label() string
	Program() ShaderProgram
	VertexLayout() common.VertexLayout
	State() pipeline.FixedFunctionState
	Release()
}

// ComputePipeline is a compute pipeline state object.
type ComputePipeline interface {
	Label() string
	Program() ShaderProgram
	WorkgroupSize() [3]uint32
	Release()
}

// DescriptorSet binds resources to the slots of a program's descriptor set layout.
type DescriptorSet interface {
	Label() string
	Layout() DescriptorSetLayout
	Release()
}

// Image is a 2D GPU image: a texture, a render target or a presentable surface image.
type Image interface {
	Label() string
	Width() uint32
	Height() uint32
	Format() wgpu.TextureFormat
	MipLevels() uint32
	Release()
}

// Sampler is texture sampling state.
type Sampler interface {
	Label() string
	Release()
}

// Fence is signaled by the GPU when a submission completes.
type Fence interface {
	// Wait blocks until the fence is signaled or timeout elapses. WaitForever disables the timeout.
	//
	// Parameters:
	//   - timeout: the longest time to block
	//
	// Returns:
	//   - error: ErrFenceTimeout if the timeout elapsed, or a device error
	Wait(timeout time.Duration) error

	// Reset returns a signaled fence to the unsignaled state so it can guard a new submission.
	Reset() error

	// Signaled reports whether the fence is currently signaled.
	Signaled() bool

	Release()
}

// Semaphore orders GPU work between queue operations.
type Semaphore interface {
	Label() string
	Release()
}

// CommandBuffer is a finished command sequence ready for submission.
type CommandBuffer interface {
	Label() string
	Release()
}

// CommandRecorder records GPU commands. Recording methods do not return errors; the first
// failure is remembered and reported by Finish.
type CommandRecorder interface {
	BeginRenderPass(desc RenderPassDescriptor)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissor(x, y, width, height uint32)
	BindBatch(b Batch)
	BindPipeline(p Pipeline)

	// BindDescriptorSet binds ds at set index set for subsequent draws. dynamicOffsets supplies one
	// offset per dynamic binding of the layout, in binding order.
	BindDescriptorSet(set uint32, ds DescriptorSet, dynamicOffsets ...uint32)

	DrawIndexed(indexCount uint32)
	EndRenderPass()

	BindComputePipeline(p ComputePipeline)
	BindComputeDescriptorSet(set uint32, ds DescriptorSet)
	Dispatch(x, y, z uint32)

	ImageBarrier(b ImageBarrier)

	// BlitImage copies src into dst with filtering, scaling to dst's extent. flipY mirrors the
	// source vertically.
	BlitImage(src, dst Image, flipY bool)

	// Finish ends recording.
	//
	// Returns:
	//   - CommandBuffer: the recorded commands
	//   - error: the first recording error, if any
	Finish() (CommandBuffer, error)
}

// Queue executes command buffers.
type Queue interface {
	// Submit enqueues cb. Execution waits for wait (if non-nil); completion signals signal and
	// fence (each if non-nil).
	//
	// Parameters:
	//   - cb: the commands to execute
	//   - wait: semaphore gating execution
	//   - signal: semaphore signaled on completion
	//   - fence: fence signaled on completion
	//
	// Returns:
	//   - error: a submission error
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error

	// WaitIdle blocks until every submitted command buffer has completed.
	WaitIdle() error
}

// Surface is the presentation target: a ring of presentable images.
type Surface interface {
	ImageCount() int
	Extent() (width, height uint32)
	Format() wgpu.TextureFormat

	// AcquireNext blocks until a presentable image is available and returns its index.
	// signal is signaled once the image may be written.
	//
	// Parameters:
	//   - signal: semaphore signaled when the image is ready
	//
	// Returns:
	//   - int: the image index in [0, ImageCount())
	//   - error: ErrSurfaceLost or another acquire error
	AcquireNext(signal Semaphore) (int, error)

	// Image returns the presentable image at index i.
	Image(i int) Image

	// Present queues image i for display once wait is signaled.
	Present(i int, wait Semaphore) error

	// Configure resizes the surface images.
	Configure(width, height uint32) error
}

// GraphicsContext is the device-level factory every renderer component receives explicitly.
type GraphicsContext interface {
	Limits() Limits
	Queue() Queue
	Surface() Surface

	// CreateBatch uploads vertex and index data for one mesh.
	CreateBatch(label string, vertexData, indexData []byte, indexCount uint32) (Batch, error)

	// CreateUniformBuffer allocates a host-writable uniform buffer of size bytes.
	CreateUniformBuffer(label string, size uint64) (Buffer, error)

	// CreateTexture uploads every level of data into a new sampled RGBA8 sRGB image.
	CreateTexture(label string, data common.TextureStagingData) (Image, error)

	// CreateImage allocates an image for use as a render, storage or transfer target.
	CreateImage(desc ImageDescriptor) (Image, error)

	CreateSampler(desc SamplerDescriptor) (Sampler, error)
	CreateShaderProgram(desc ShaderProgramDescriptor) (ShaderProgram, error)

	// CreateGraphicsPipeline builds a pipeline from program's layout, the vertex layout and state.
	CreateGraphicsPipeline(program ShaderProgram, layout common.VertexLayout, state pipeline.FixedFunctionState, colorFormat, depthFormat wgpu.TextureFormat) (Pipeline, error)

	CreateComputePipeline(program ShaderProgram) (ComputePipeline, error)
	CreateDescriptorSet(label string, program ShaderProgram, bindings []DescriptorBinding) (DescriptorSet, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore(label string) (Semaphore, error)
	CreateCommandRecorder(label string) (CommandRecorder, error)

	Release()
}
