package engine_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine"
	"github.com/Carmen-Shannon/excess/engine/camera"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/Carmen-Shannon/excess/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow stays open for a fixed number of polls.
type fakeWindow struct {
	openFor int
	polls   int
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetScrollCallback(func(float32))            {}
func (w *fakeWindow) SetKeyDownCallback(func(uint32))            {}
func (w *fakeWindow) SetKeyUpCallback(func(uint32))              {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool                            { return w.polls <= w.openFor }
func (w *fakeWindow) Close() error                               { return nil }
func (w *fakeWindow) Title() string                              { return "test" }
func (w *fakeWindow) Fullscreen() bool                           { return false }
func (w *fakeWindow) Width() int                                 { return 640 }
func (w *fakeWindow) Height() int                                { return 480 }

func (w *fakeWindow) PollEvents() bool {
	w.polls++
	return w.IsRunning()
}

// stepClock advances by a fixed step on every read.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type fixture struct {
	ctx      *mock_gpu.Context
	scene    scene.Scene
	t1, t2   scene.TransformID
	renderer renderer.Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s := scene.NewScene()
	t1 := s.CreateTransform(scene.NoParent)
	t2 := s.CreateTransform(t1)
	s.CreateObject(m, t1)
	s.CreateObject(m, t2)

	ctx := mock_gpu.NewContext()
	r, err := renderer.NewRenderer(ctx, s)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return &fixture{ctx: ctx, scene: s, t1: t1, t2: t2, renderer: r}
}

func readMat4(b []byte) common.Mat4 {
	var m common.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

func TestRunUntilWindowCloses(t *testing.T) {
	f := newFixture(t)
	clock := &stepClock{t: time.Unix(100, 0), step: 10 * time.Millisecond}

	var elapsed []float32
	e := engine.NewEngine(
		engine.WithWindow(&fakeWindow{openFor: 5}),
		engine.WithRenderer(f.renderer),
		engine.WithClock(clock.now),
		engine.WithUpdateCallback(func(th, dt float32) {
			elapsed = append(elapsed, th)
			assert.InDelta(t, 0.01, dt, 1e-6)
			f.scene.SetLocalMatrix(f.t1, common.RotationMatrix(th, 0, 0, 1))
			f.scene.SetLocalMatrix(f.t2, common.TranslationMatrix(float32(math.Cos(float64(th))), 1, 1))
		}),
	)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(5), e.Frames())
	require.Len(t, elapsed, 5)
	for i := 1; i < len(elapsed); i++ {
		assert.Greater(t, elapsed[i], elapsed[i-1])
	}
	assert.Len(t, f.ctx.MockSurface().Presented(), 5)
	assert.GreaterOrEqual(t, f.ctx.WaitIdleCalls(), 1)
}

func TestRunUsesCameraViewProjection(t *testing.T) {
	f := newFixture(t)
	ctrl := camera.NewCameraController(camera.WithRadius(10))
	cam := camera.NewCamera(camera.WithController(ctrl), camera.WithAspect(640.0/480.0))

	e := engine.NewEngine(
		engine.WithWindow(&fakeWindow{openFor: 1}),
		engine.WithRenderer(f.renderer),
		engine.WithCamera(cam),
		engine.WithUpdateCallback(func(th, _ float32) {
			ctrl.SetAzimuth(0.3)
		}),
	)
	require.NoError(t, e.Run(context.Background()))

	stream := f.renderer.Stream()
	data := stream.Buffer().(*mock_gpu.Buffer).Bytes()
	off := stream.RegionOffset(0) + uint64(stream.Offset(f.t2))
	want := common.MulMat4(cam.ViewProjectionMatrix(), f.scene.AbsoluteMatrix(f.t2))
	assert.True(t, common.ApproxEqualMat4(want, readMat4(data[off:]), 1e-4))

	// the update ran before the camera was read
	x, _, _ := ctrl.Position()
	assert.InDelta(t, 10*math.Sin(0.3), x, 1e-4)
}

func TestRunStopsOnFrameFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("device lost")

	calls := 0
	e := engine.NewEngine(
		engine.WithWindow(&fakeWindow{openFor: 10}),
		engine.WithRenderer(f.renderer),
		engine.WithUpdateCallback(func(float32, float32) {
			calls++
			if calls == 3 {
				f.ctx.Fail(mock_gpu.OpSubmit, boom)
			}
		}),
	)

	err := e.Run(context.Background())
	require.ErrorIs(t, err, boom)
	var frameErr *renderer.FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, renderer.FrameStateRecording, frameErr.State)
	assert.Equal(t, uint64(2), e.Frames())
	assert.Equal(t, 3, calls)
	assert.Equal(t, renderer.FrameStateFailed, f.renderer.Executor().State())
}

func TestDoRunsOnLoopAndQuit(t *testing.T) {
	f := newFixture(t)
	e := engine.NewEngine(
		engine.WithWindow(&fakeWindow{openFor: 100}),
		engine.WithRenderer(f.renderer),
	)

	ran := false
	e.Do(func() { ran = true })
	e.Do(e.Quit)

	require.NoError(t, e.Run(context.Background()))
	assert.True(t, ran)
	// the frame in progress when Quit was called still completes
	assert.Equal(t, uint64(1), e.Frames())

	// Do after quitting does not block
	e.Do(func() {})
}

func TestRunHonorsCancelledContext(t *testing.T) {
	f := newFixture(t)
	e := engine.NewEngine(
		engine.WithWindow(&fakeWindow{openFor: 100}),
		engine.WithRenderer(f.renderer),
		engine.WithProfiling(true),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, e.Run(ctx))
	assert.Zero(t, e.Frames())
	assert.Empty(t, f.ctx.Submissions())
}

func TestRunRequiresWindowAndRenderer(t *testing.T) {
	assert.Error(t, engine.NewEngine().Run(context.Background()))
	assert.Error(t, engine.NewEngine(engine.WithWindow(&fakeWindow{})).Run(context.Background()))
}
