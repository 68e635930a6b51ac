package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/camera"
	"github.com/Carmen-Shannon/excess/engine/profiler"
	"github.com/Carmen-Shannon/excess/engine/renderer"
	"github.com/Carmen-Shannon/excess/engine/window"
)

// actionQueueSize bounds the actions queued for the next frame.
const actionQueueSize = 64

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	window   window.Window
	renderer renderer.Renderer
	camera   camera.Camera

	profiler         *profiler.Profiler
	profilingEnabled bool

	onUpdate func(elapsed, dt float32)
	actions  chan func()

	quitChannel chan struct{}
	quitOnce    sync.Once

	now              func() time.Time
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	frames           uint64
}

// Engine drives the render loop: poll the window, run the per-frame update,
// render one frame through the renderer, repeat until the window closes.
//
// Everything that touches the scene or the renderer runs on the goroutine that
// called Run. Other goroutines hand work to that loop through Do.
type Engine interface {
	// Window returns the window the engine polls.
	Window() window.Window

	// Renderer returns the renderer the engine drives.
	Renderer() renderer.Renderer

	// Camera returns the camera whose view-projection is used each frame, or nil.
	Camera() camera.Camera

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetUpdateCallback registers the function called once per frame before rendering.
	// Use it to animate transforms and move the camera.
	//
	// Parameters:
	//   - callback: receives seconds since Run started and seconds since the previous frame
	SetUpdateCallback(callback func(elapsed, dt float32))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Do queues fn to run on the render loop before the next frame's update.
	// Safe for concurrent use. When the queue is full, Do blocks until the loop drains it or quits.
	//
	// Parameters:
	//   - fn: the action to run
	Do(fn func())

	// Frames returns the number of frames rendered so far.
	Frames() uint64

	// Run starts the render loop and blocks until the window closes, Quit is called,
	// ctx is cancelled or a frame fails. After the loop ends it waits for the GPU
	// queue to drain. Releasing the renderer and the window is left to the caller.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: the frame failure that stopped the loop, or nil on a normal exit
	Run(ctx context.Context) error

	// Quit signals the render loop to stop after the current frame.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// Ensure engine implements Engine interface.
var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options.
// WithWindow and WithRenderer are required before Run.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		actions:     make(chan func(), actionQueueSize),
		quitChannel: make(chan struct{}),
		now:         time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(profiler.WithClock(e.now))
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) SetUpdateCallback(callback func(elapsed, dt float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) Do(fn func()) {
	select {
	case e.actions <- fn:
	case <-e.quitChannel:
	}
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	if e.window == nil || e.renderer == nil {
		return errors.New("engine: a window and a renderer are required")
	}
	defer e.Quit()

	log := common.Logger()
	start := e.now()
	last := start
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("engine: context cancelled", slog.Any("cause", context.Cause(ctx)))
			break loop
		case <-e.quitChannel:
			break loop
		default:
		}

		if !e.window.PollEvents() {
			break
		}
		e.drainActions()

		e.mu.Lock()
		onUpdate, limit, profiling := e.onUpdate, e.renderFrameLimit, e.profilingEnabled
		e.mu.Unlock()

		now := e.now()
		elapsed := float32(now.Sub(start).Seconds())
		dt := float32(now.Sub(last).Seconds())
		last = now

		if onUpdate != nil {
			onUpdate(elapsed, dt)
		}

		viewProjection := common.IdentityMatrix()
		if e.camera != nil {
			e.camera.Update()
			viewProjection = e.camera.ViewProjectionMatrix()
		}

		if err := e.renderer.RenderFrame(viewProjection); err != nil {
			runErr = fmt.Errorf("engine: %w", err)
			break
		}

		e.mu.Lock()
		e.frames++
		e.mu.Unlock()

		if profiling {
			e.profiler.Tick()
		}

		if limit > 0 {
			if remaining := limit - e.now().Sub(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}

	if err := e.renderer.Shutdown(); err != nil && !errors.Is(err, renderer.ErrExecutorFailed) {
		log.Warn("engine: queue did not drain", slog.Any("error", err))
		if runErr == nil {
			runErr = fmt.Errorf("engine: shutdown: %w", err)
		}
	}
	log.Info("engine stopped", slog.Uint64("frames", e.Frames()))
	return runErr
}

// drainActions runs every queued action without blocking.
func (e *engine) drainActions() {
	for {
		select {
		case fn := <-e.actions:
			fn()
		default:
			return
		}
	}
}

// frameDuration converts a frame rate cap to a minimum frame duration. fps <= 0 means uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
