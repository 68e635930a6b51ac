package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	ctx   gpu.GraphicsContext
	scene scene.Scene

	factory         shader.ProgramFactory
	streamOptions   []UniformStreamBuilderOption
	cacheOptions    []ResourceCacheBuilderOption
	postOptions     []PostProcessBuilderOption
	executorOptions []FrameExecutorBuilderOption

	stream   UniformStream
	cache    ResourceCache
	draws    []DrawDescriptor
	post     PostProcess
	executor FrameExecutor
	released bool
}

// Renderer defines the interface for drawing one scene every frame.
//
// This is a high-level API that wires the renderer components in order: the uniform stream is
// sized from the scene's transforms, the resource cache compiles the scene's meshes, materials
// and vertex layouts, the frame compiler resolves one draw per object, and the frame executor
// replays that draw list every frame through the post-process stage onto the surface.
//
// The scene's topology must be final before NewRenderer; only matrix values may change
// afterwards.
type Renderer interface {
	// Scene returns the scene being drawn.
	Scene() scene.Scene

	// Cache returns the compiled resource cache.
	Cache() ResourceCache

	// Stream returns the per-object uniform stream.
	Stream() UniformStream

	// Draws returns the compiled draw list in draw order.
	Draws() []DrawDescriptor

	// PostProcess returns the post-process stage.
	PostProcess() PostProcess

	// Executor returns the frame executor.
	Executor() FrameExecutor

	// RenderFrame draws one frame of the scene as seen through viewProjection.
	//
	// Parameters:
	//   - viewProjection: the camera's view-projection matrix
	//
	// Returns:
	//   - error: a *FrameError on GPU failure, ErrExecutorFailed after an earlier failure
	RenderFrame(viewProjection common.Mat4) error

	// SetClearColor changes the scene clear color for later frames.
	SetClearColor(color [4]float64)

	// SetExposure changes the post-process exposure for later frames.
	SetExposure(exposure float32) error

	// Shutdown waits for the GPU to finish every submitted frame.
	Shutdown() error

	// Release frees every component in reverse construction order. The graphics context is
	// owned by the caller and stays alive.
	Release()
}

// Ensure renderer implements Renderer interface.
var _ Renderer = &renderer{}

// NewRenderer builds every renderer component for s on ctx. Any failure releases the components
// that were already built and returns the error.
//
// Parameters:
//   - ctx: the graphics context
//   - s: the scene to draw
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: the first construction error
func NewRenderer(ctx gpu.GraphicsContext, s scene.Scene, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:    &sync.Mutex{},
		ctx:   ctx,
		scene: s,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.factory == nil {
		r.factory = shader.NewProgramFactory(ctx)
	}

	if err := r.build(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *renderer) build() error {
	var err error
	slots := r.ctx.Surface().ImageCount()
	streamOptions := append([]UniformStreamBuilderOption{WithRegions(slots)}, r.streamOptions...)
	if r.stream, err = NewUniformStream(r.ctx, r.scene, streamOptions...); err != nil {
		return err
	}
	if r.cache, err = NewResourceCache(r.ctx, r.scene, r.factory, r.stream, r.cacheOptions...); err != nil {
		return err
	}
	r.draws = CompileFrame(r.scene, r.cache, r.stream)

	width, height := r.ctx.Surface().Extent()
	if r.post, err = NewPostProcess(r.ctx, width, height, r.postOptions...); err != nil {
		return err
	}
	r.executor, err = NewFrameExecutor(r.ctx, r.draws, r.stream, r.post, r.executorOptions...)
	return err
}

func (r *renderer) Scene() scene.Scene {
	return r.scene
}

func (r *renderer) Cache() ResourceCache {
	return r.cache
}

func (r *renderer) Stream() UniformStream {
	return r.stream
}

func (r *renderer) Draws() []DrawDescriptor {
	return r.draws
}

func (r *renderer) PostProcess() PostProcess {
	return r.post
}

func (r *renderer) Executor() FrameExecutor {
	return r.executor
}

func (r *renderer) RenderFrame(viewProjection common.Mat4) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return fmt.Errorf("renderer: render after release: %w", ErrExecutorFailed)
	}
	return r.executor.RenderFrame(viewProjection)
}

func (r *renderer) SetClearColor(color [4]float64) {
	r.executor.SetClearColor(color)
}

func (r *renderer) SetExposure(exposure float32) error {
	return r.post.SetExposure(exposure)
}

func (r *renderer) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.executor == nil {
		return nil
	}
	return r.executor.Shutdown()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	if r.executor != nil {
		if err := r.executor.Shutdown(); err != nil && !errors.Is(err, ErrExecutorFailed) {
			common.Logger().Warn("renderer: queue did not drain before release", "error", err)
		}
		r.executor.Release()
	}
	if r.post != nil {
		r.post.Release()
	}
	r.draws = nil
	if r.cache != nil {
		r.cache.Release()
	}
	if r.stream != nil {
		r.stream.Release()
	}
	common.Logger().Info("renderer released")
}
