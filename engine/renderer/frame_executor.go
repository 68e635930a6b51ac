package renderer

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
)

var (
	// ErrExecutorFailed is returned by every call after a frame failed.
	ErrExecutorFailed = errors.New("renderer: frame executor failed")
	// ErrInvalidTransition is wrapped when the executor is asked to move between two states
	// that are not connected.
	ErrInvalidTransition = errors.New("renderer: invalid frame state transition")
)

// FrameState is the stage of the frame the executor is working on.
type FrameState int

const (
	// FrameStateIdle waits for the next RenderFrame call.
	FrameStateIdle FrameState = iota
	// FrameStateAcquiring waits for a presentable image and for the slot's fence.
	FrameStateAcquiring
	// FrameStateRecording writes uniforms and records the frame's commands.
	FrameStateRecording
	// FrameStateSubmitted has handed the frame to the queue.
	FrameStateSubmitted
	// FrameStatePresented has queued the image for display.
	FrameStatePresented
	// FrameStateFailed is terminal: a frame hit a GPU error.
	FrameStateFailed
)

var frameStateNames = [...]string{
	FrameStateIdle:      "IDLE",
	FrameStateAcquiring: "ACQUIRING",
	FrameStateRecording: "RECORDING",
	FrameStateSubmitted: "SUBMITTED",
	FrameStatePresented: "PRESENTED",
	FrameStateFailed:    "FAILED",
}

func (s FrameState) String() string {
	if s >= 0 && int(s) < len(frameStateNames) {
		return frameStateNames[s]
	}
	return "FrameState(" + strconv.Itoa(int(s)) + ")"
}

// frameTransitions lists the legal successors of every state. Any non-terminal state may fail.
var frameTransitions = map[FrameState][]FrameState{
	FrameStateIdle:      {FrameStateAcquiring},
	FrameStateAcquiring: {FrameStateRecording, FrameStateFailed},
	FrameStateRecording: {FrameStateSubmitted, FrameStateFailed},
	FrameStateSubmitted: {FrameStatePresented, FrameStateFailed},
	FrameStatePresented: {FrameStateIdle, FrameStateFailed},
}

// CanTransition reports whether the executor may move from one state to another.
//
// Parameters:
//   - from: the current state
//   - to: the requested state
//
// Returns:
//   - bool: true if the transition is legal
func CanTransition(from, to FrameState) bool {
	for _, next := range frameTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FrameError reports the state a frame failed in and the GPU error that caused it.
type FrameError struct {
	State FrameState
	Frame uint64
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d failed while %v: %v", e.Frame, e.State, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// frameSlot holds the synchronization objects of one presentable image.
type frameSlot struct {
	inFlight      gpu.Fence
	renderDone    gpu.Semaphore
	imageAcquired gpu.Semaphore
}

// frameExecutor is the implementation of the FrameExecutor interface.
type frameExecutor struct {
	mu *sync.Mutex

	ctx    gpu.GraphicsContext
	draws  []DrawDescriptor
	stream UniformStream
	post   PostProcess

	slots      []frameSlot
	clearColor [4]float64
	clearDepth float32

	state FrameState
	frame uint64
}

// FrameExecutor renders compiled draw lists, one frame per RenderFrame call.
//
// Every frame walks Idle, Acquiring, Recording, Submitted, Presented and back to Idle. Before a
// slot's uniform region is rewritten the executor waits for the fence of the slot's previous
// submission, so at most one frame per presentable image is in flight. Any GPU error moves the
// executor to FrameStateFailed for good.
type FrameExecutor interface {
	// RenderFrame renders one frame with viewProjection applied to every transform.
	//
	// Parameters:
	//   - viewProjection: the camera's view-projection matrix
	//
	// Returns:
	//   - error: a *FrameError on GPU failure, ErrExecutorFailed after an earlier failure
	RenderFrame(viewProjection common.Mat4) error

	// State returns the current frame state.
	State() FrameState

	// Frames returns the number of frames presented.
	Frames() uint64

	// SetClearColor sets the color the scene target is cleared to.
	SetClearColor(color [4]float64)

	// Shutdown blocks until the queue is idle. Call it before releasing resources the GPU may
	// still be reading.
	Shutdown() error

	// Release frees the fences and semaphores.
	Release()
}

// Ensure frameExecutor implements FrameExecutor interface.
var _ FrameExecutor = &frameExecutor{}

// NewFrameExecutor creates one fence and semaphore pair per presentable image. Fences start
// signaled so the first use of every slot does not wait. stream must have one region per
// presentable image.
//
// Parameters:
//   - ctx: the graphics context providing the queue and surface
//   - draws: the compiled draw list
//   - stream: the uniform stream the draws' offsets index
//   - post: the post-process stage owning the scene targets
//   - options: functional options to configure the executor
//
// Returns:
//   - FrameExecutor: the executor
//   - error: an error if synchronization objects cannot be created or the stream is too small
func NewFrameExecutor(ctx gpu.GraphicsContext, draws []DrawDescriptor, stream UniformStream, post PostProcess, options ...FrameExecutorBuilderOption) (FrameExecutor, error) {
	fe := &frameExecutor{
		mu:         &sync.Mutex{},
		ctx:        ctx,
		draws:      draws,
		stream:     stream,
		post:       post,
		clearColor: [4]float64{0.5, 0.5, 0.5, 1},
		clearDepth: 1,
		state:      FrameStateIdle,
	}
	for _, opt := range options {
		opt(fe)
	}

	n := ctx.Surface().ImageCount()
	if n < 1 {
		return nil, fmt.Errorf("frame executor: surface has no images")
	}
	if stream.Regions() < n {
		return nil, fmt.Errorf("frame executor: uniform stream has %d regions for %d frames in flight", stream.Regions(), n)
	}

	fe.slots = make([]frameSlot, n)
	for i := range fe.slots {
		if err := fe.createSlot(i); err != nil {
			fe.Release()
			return nil, fmt.Errorf("frame executor: %w", err)
		}
	}

	common.Logger().Info("frame executor created", "slots", n, "draws", len(draws))
	return fe, nil
}

func (fe *frameExecutor) createSlot(i int) error {
	fence, err := fe.ctx.CreateFence(true)
	if err != nil {
		return err
	}
	fe.slots[i].inFlight = fence
	if fe.slots[i].renderDone, err = fe.ctx.CreateSemaphore(fmt.Sprintf("Render Done %d", i)); err != nil {
		return err
	}
	fe.slots[i].imageAcquired, err = fe.ctx.CreateSemaphore(fmt.Sprintf("Image Acquired %d", i))
	return err
}

func (fe *frameExecutor) State() FrameState {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.state
}

func (fe *frameExecutor) Frames() uint64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.frame
}

func (fe *frameExecutor) SetClearColor(color [4]float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.clearColor = color
}

// transition moves to the next state. Callers hold fe.mu.
func (fe *frameExecutor) transition(to FrameState) {
	if !CanTransition(fe.state, to) {
		panic(fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, fe.state, to))
	}
	common.Logger().Debug("frame state", "frame", fe.frame, "from", fe.state, "to", to)
	fe.state = to
}

// fail records err as fatal. Callers hold fe.mu.
func (fe *frameExecutor) fail(err error) error {
	ferr := &FrameError{State: fe.state, Frame: fe.frame, Err: err}
	fe.transition(FrameStateFailed)
	common.Logger().Error("frame failed", "frame", ferr.Frame, "state", ferr.State, "error", err)
	return ferr
}

func (fe *frameExecutor) RenderFrame(viewProjection common.Mat4) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.state == FrameStateFailed {
		return ErrExecutorFailed
	}
	if fe.state != FrameStateIdle {
		return fmt.Errorf("%w: frame started in state %v", ErrInvalidTransition, fe.state)
	}

	fe.transition(FrameStateAcquiring)
	acquired := fe.slots[fe.frame%uint64(len(fe.slots))].imageAcquired
	image, err := fe.ctx.Surface().AcquireNext(acquired)
	if err != nil {
		return fe.fail(fmt.Errorf("acquire: %w", err))
	}
	if image < 0 || image >= len(fe.slots) {
		return fe.fail(fmt.Errorf("acquire: image index %d out of range", image))
	}
	slot := fe.slots[image]
	if err := slot.inFlight.Wait(gpu.WaitForever); err != nil {
		return fe.fail(fmt.Errorf("wait for slot %d: %w", image, err))
	}
	if err := slot.inFlight.Reset(); err != nil {
		return fe.fail(fmt.Errorf("reset slot %d: %w", image, err))
	}

	fe.transition(FrameStateRecording)
	cb, err := fe.record(image, viewProjection)
	if err != nil {
		return fe.fail(err)
	}
	defer cb.Release()

	if err := fe.ctx.Queue().Submit(cb, acquired, slot.renderDone, slot.inFlight); err != nil {
		return fe.fail(fmt.Errorf("submit: %w", err))
	}
	fe.transition(FrameStateSubmitted)

	if err := fe.ctx.Surface().Present(image, slot.renderDone); err != nil {
		return fe.fail(fmt.Errorf("present: %w", err))
	}
	fe.transition(FrameStatePresented)

	fe.frame++
	fe.transition(FrameStateIdle)
	return nil
}

// record writes the slot's uniform region and records the scene pass followed by the
// post-process commands. Callers hold fe.mu.
func (fe *frameExecutor) record(image int, viewProjection common.Mat4) (gpu.CommandBuffer, error) {
	if err := fe.stream.Write(image, viewProjection); err != nil {
		return nil, fmt.Errorf("uniforms: %w", err)
	}
	base := fe.stream.RegionOffset(image)

	rec, err := fe.ctx.CreateCommandRecorder(fmt.Sprintf("Frame %d", fe.frame))
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	// The targets are shared by every slot: the previous frame's compute pass read the color
	// target and its scene pass wrote the depth target.
	color, depth := fe.post.ColorTarget(), fe.post.DepthTarget()
	width, height := fe.post.Extent()
	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     color,
		OldLayout: gpu.ImageLayoutUndefined,
		NewLayout: gpu.ImageLayoutColorAttachment,
		SrcStage:  gpu.PipelineStageComputeShader,
		DstStage:  gpu.PipelineStageColorAttachmentOutput,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessColorAttachmentWrite,
	})
	rec.ImageBarrier(gpu.ImageBarrier{
		Image:     depth,
		OldLayout: gpu.ImageLayoutUndefined,
		NewLayout: gpu.ImageLayoutDepthAttachment,
		SrcStage:  gpu.PipelineStageLateFragmentTests,
		DstStage:  gpu.PipelineStageEarlyFragmentTests | gpu.PipelineStageLateFragmentTests,
		SrcAccess: gpu.AccessDepthStencilAttachmentWrite,
		DstAccess: gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
	})

	rec.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:      "Scene Pass",
		Color:      color,
		Depth:      depth,
		ClearColor: fe.clearColor,
		ClearDepth: fe.clearDepth,
	})
	rec.SetViewport(0, 0, float32(width), float32(height), 0, 1)
	rec.SetScissor(0, 0, width, height)

	var bound gpu.Pipeline
	for i := range fe.draws {
		d := &fe.draws[i]
		rec.BindBatch(d.Batch)
		if d.Pipeline != bound {
			rec.BindPipeline(d.Pipeline)
			bound = d.Pipeline
		}
		rec.BindDescriptorSet(0, d.DescriptorSet, uint32(base)+d.UniformOffset)
		rec.DrawIndexed(d.IndexCount)
	}
	rec.EndRenderPass()

	fe.post.Record(rec, fe.ctx.Surface().Image(image))

	cb, err := rec.Finish()
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return cb, nil
}

func (fe *frameExecutor) Shutdown() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if err := fe.ctx.Queue().WaitIdle(); err != nil {
		return fmt.Errorf("frame executor: wait idle: %w", err)
	}
	common.Logger().Info("frame executor idle", "frames", fe.frame)
	return nil
}

func (fe *frameExecutor) Release() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	for i := range fe.slots {
		s := &fe.slots[i]
		if s.inFlight != nil {
			s.inFlight.Release()
		}
		if s.renderDone != nil {
			s.renderDone.Release()
		}
		if s.imageAcquired != nil {
			s.imageAcquired.Release()
		}
	}
	fe.slots = nil
}
