// Package mock_gpu is an in-memory gpu.GraphicsContext. It records every command and submission,
// backs buffers with host memory and retires fences when they are waited on, so renderer logic
// can be tested without a device.
package mock_gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// Operation names a context call that can be made to fail.
type Operation string

const (
	OpCreateBatch            Operation = "CreateBatch"
	OpCreateUniformBuffer    Operation = "CreateUniformBuffer"
	OpCreateTexture          Operation = "CreateTexture"
	OpCreateImage            Operation = "CreateImage"
	OpCreateSampler          Operation = "CreateSampler"
	OpCreateShaderProgram    Operation = "CreateShaderProgram"
	OpCreateGraphicsPipeline Operation = "CreateGraphicsPipeline"
	OpCreateComputePipeline  Operation = "CreateComputePipeline"
	OpCreateDescriptorSet    Operation = "CreateDescriptorSet"
	OpCreateCommandRecorder  Operation = "CreateCommandRecorder"
	OpMap                    Operation = "Map"
	OpSubmit                 Operation = "Submit"
	OpAcquire                Operation = "AcquireNext"
	OpPresent                Operation = "Present"
	OpFenceWait              Operation = "FenceWait"
)

// Kind names a category of created object for Created and Live counts.
type Kind string

const (
	KindBatch           Kind = "batch"
	KindUniformBuffer   Kind = "uniform_buffer"
	KindTexture         Kind = "texture"
	KindImage           Kind = "image"
	KindSampler         Kind = "sampler"
	KindShaderProgram   Kind = "shader_program"
	KindPipeline        Kind = "pipeline"
	KindComputePipeline Kind = "compute_pipeline"
	KindDescriptorSet   Kind = "descriptor_set"
	KindFence           Kind = "fence"
	KindSemaphore       Kind = "semaphore"
)

// Submission is one recorded Queue.Submit call.
type Submission struct {
	Label    string
	Commands []Command
	Wait     gpu.Semaphore
	Signal   gpu.Semaphore
	Fence    gpu.Fence
}

// Context is the mock graphics context.
type Context struct {
	mu *sync.Mutex

	limits   gpu.Limits
	queue    *Queue
	surface  *Surface
	failures map[Operation]error
	created  map[Kind]int
	released map[Kind]int

	submissions  []Submission
	pending      []*Fence
	maxInFlight  int
	waitIdles    int
	holdFences   bool
	destroyed    bool
	programDescs []gpu.ShaderProgramDescriptor
}

var _ gpu.GraphicsContext = &Context{}

// NewContext creates a mock context with 256-byte uniform offset alignment and a three image
// 640x480 surface unless options say otherwise.
//
// Parameters:
//   - options: functional options to configure the context
//
// Returns:
//   - *Context: the new mock context
func NewContext(options ...ContextBuilderOption) *Context {
	c := &Context{
		mu: &sync.Mutex{},
		limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MaxUniformBufferBindingSize:     1 << 16,
		},
		failures: make(map[Operation]error),
		created:  make(map[Kind]int),
		released: make(map[Kind]int),
	}
	c.queue = &Queue{ctx: c}
	c.surface = newSurface(c, 3, 640, 480)
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Fail makes every later call of op return err. A nil err clears the failure.
func (c *Context) Fail(op Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

func (c *Context) failure(op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failures[op]; ok {
		return fmt.Errorf("mock %s: %w", op, err)
	}
	return nil
}

func (c *Context) track(k Kind) {
	c.mu.Lock()
	c.created[k]++
	c.mu.Unlock()
}

func (c *Context) untrack(k Kind) {
	c.mu.Lock()
	c.released[k]++
	c.mu.Unlock()
}

// Created returns how many objects of kind k were created.
func (c *Context) Created(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created[k]
}

// Live returns how many objects of kind k were created and not yet released.
func (c *Context) Live(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created[k] - c.released[k]
}

// Submissions returns a copy of every submission so far.
func (c *Context) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.submissions...)
}

// MaxInFlight returns the largest number of submissions that were pending at once.
func (c *Context) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

// InFlight returns the number of submissions whose fences have not retired.
func (c *Context) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// WaitIdleCalls returns how often Queue.WaitIdle was called.
func (c *Context) WaitIdleCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitIdles
}

// HoldFences stops fence waits from retiring submissions; waits then time out.
func (c *Context) HoldFences(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdFences = hold
}

// RetireAll completes every pending submission.
func (c *Context) RetireAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retireAllLocked()
}

func (c *Context) retireAllLocked() {
	for _, f := range c.pending {
		f.signaled = true
		f.armed = false
	}
	c.pending = nil
}

// ProgramDescriptors returns the descriptors of every created shader program.
func (c *Context) ProgramDescriptors() []gpu.ShaderProgramDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gpu.ShaderProgramDescriptor(nil), c.programDescs...)
}

// Released reports whether Release was called on the context.
func (c *Context) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// MockSurface returns the concrete mock surface.
func (c *Context) MockSurface() *Surface { return c.surface }

func (c *Context) Limits() gpu.Limits   { return c.limits }
func (c *Context) Queue() gpu.Queue     { return c.queue }
func (c *Context) Surface() gpu.Surface { return c.surface }

func (c *Context) CreateBatch(label string, vertexData, indexData []byte, indexCount uint32) (gpu.Batch, error) {
	if err := c.failure(OpCreateBatch); err != nil {
		return nil, err
	}
	if len(vertexData) == 0 || len(indexData) == 0 {
		return nil, fmt.Errorf("batch %q: vertex and index data are required", label)
	}
	if uint64(indexCount)*4 != uint64(len(indexData)) {
		return nil, fmt.Errorf("batch %q: %d index bytes do not hold %d uint32 indices", label, len(indexData), indexCount)
	}
	c.track(KindBatch)
	return &Batch{
		ctx:        c,
		label:      label,
		Vertices:   append([]byte(nil), vertexData...),
		Indices:    append([]byte(nil), indexData...),
		indexCount: indexCount,
	}, nil
}

func (c *Context) CreateUniformBuffer(label string, size uint64) (gpu.Buffer, error) {
	if err := c.failure(OpCreateUniformBuffer); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("uniform buffer %q: size must be positive", label)
	}
	c.track(KindUniformBuffer)
	return &Buffer{mu: &sync.Mutex{}, ctx: c, label: label, data: make([]byte, size)}, nil
}

func (c *Context) CreateTexture(label string, data common.TextureStagingData) (gpu.Image, error) {
	if err := c.failure(OpCreateTexture); err != nil {
		return nil, err
	}
	if len(data.Levels) == 0 {
		return nil, fmt.Errorf("texture %q: no pixel data", label)
	}
	c.track(KindTexture)
	return &Image{
		ctx:    c,
		kind:   KindTexture,
		label:  label,
		width:  data.Width(),
		height: data.Height(),
		format: wgpu.TextureFormatRGBA8UnormSrgb,
		mips:   uint32(len(data.Levels)),
		Usage:  gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
	}, nil
}

func (c *Context) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	if err := c.failure(OpCreateImage); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("image %q: extent %dx%d is empty", desc.Label, desc.Width, desc.Height)
	}
	c.track(KindImage)
	return &Image{
		ctx:    c,
		kind:   KindImage,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		mips:   max(desc.MipLevels, 1),
		Usage:  desc.Usage,
	}, nil
}

func (c *Context) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := c.failure(OpCreateSampler); err != nil {
		return nil, err
	}
	c.track(KindSampler)
	return &Sampler{ctx: c, label: desc.Label, Desc: desc}, nil
}

func (c *Context) CreateShaderProgram(desc gpu.ShaderProgramDescriptor) (gpu.ShaderProgram, error) {
	if err := c.failure(OpCreateShaderProgram); err != nil {
		return nil, err
	}
	if len(desc.EntryPoints) == 0 {
		return nil, fmt.Errorf("shader program %q: no entry points", desc.Label)
	}
	c.track(KindShaderProgram)
	c.mu.Lock()
	c.programDescs = append(c.programDescs, desc)
	c.mu.Unlock()
	return &ShaderProgram{ctx: c, desc: desc}, nil
}

func (c *Context) CreateGraphicsPipeline(program gpu.ShaderProgram, layout common.VertexLayout, state pipeline.FixedFunctionState, colorFormat, depthFormat wgpu.TextureFormat) (gpu.Pipeline, error) {
	if err := c.failure(OpCreateGraphicsPipeline); err != nil {
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("graphics pipeline %q: %w", program.Label(), err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("graphics pipeline %q: %w", program.Label(), err)
	}
	if _, ok := program.EntryPoint(gpu.ShaderStageVertex); !ok {
		return nil, fmt.Errorf("graphics pipeline %q: program has no vertex entry point", program.Label())
	}
	if _, ok := program.EntryPoint(gpu.ShaderStageFragment); !ok {
		return nil, fmt.Errorf("graphics pipeline %q: program has no fragment entry point", program.Label())
	}
	c.track(KindPipeline)
	return &Pipeline{
		ctx:         c,
		label:       program.Label() + " [" + layout.Key() + "]",
		program:     program,
		layout:      layout,
		state:       state,
		ColorFormat: colorFormat,
		DepthFormat: depthFormat,
	}, nil
}

func (c *Context) CreateComputePipeline(program gpu.ShaderProgram) (gpu.ComputePipeline, error) {
	if err := c.failure(OpCreateComputePipeline); err != nil {
		return nil, err
	}
	cs, ok := program.EntryPoint(gpu.ShaderStageCompute)
	if !ok {
		return nil, fmt.Errorf("compute pipeline %q: program has no compute entry point", program.Label())
	}
	c.track(KindComputePipeline)
	return &ComputePipeline{ctx: c, label: program.Label() + " Compute Pipeline", program: program, workgroup: cs.WorkgroupSize}, nil
}

func (c *Context) CreateDescriptorSet(label string, program gpu.ShaderProgram, bindings []gpu.DescriptorBinding) (gpu.DescriptorSet, error) {
	if err := c.failure(OpCreateDescriptorSet); err != nil {
		return nil, err
	}
	layout := program.DescriptorSetLayout()
	if err := gpu.ValidateDescriptorBindings(layout, bindings); err != nil {
		return nil, fmt.Errorf("descriptor set %q: %w", label, err)
	}
	c.track(KindDescriptorSet)
	return &DescriptorSet{
		ctx:      c,
		label:    label,
		layout:   layout,
		Bindings: append([]gpu.DescriptorBinding(nil), bindings...),
	}, nil
}

func (c *Context) CreateFence(signaled bool) (gpu.Fence, error) {
	c.track(KindFence)
	return &Fence{ctx: c, signaled: signaled}, nil
}

func (c *Context) CreateSemaphore(label string) (gpu.Semaphore, error) {
	c.track(KindSemaphore)
	return &Semaphore{ctx: c, label: label}, nil
}

func (c *Context) CreateCommandRecorder(label string) (gpu.CommandRecorder, error) {
	if err := c.failure(OpCreateCommandRecorder); err != nil {
		return nil, err
	}
	return &Recorder{
		ctx:         c,
		label:       label,
		layouts:     gpu.NewLayoutTracker(),
		computeSets: make(map[uint32]*DescriptorSet),
	}, nil
}

func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}
