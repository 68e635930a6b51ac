package mock_gpu_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitEmpty(t *testing.T, ctx *mock_gpu.Context, fence gpu.Fence) {
	t.Helper()
	rec, err := ctx.CreateCommandRecorder("empty")
	require.NoError(t, err)
	cb, err := rec.Finish()
	require.NoError(t, err)
	require.NoError(t, ctx.Queue().Submit(cb, nil, nil, fence))
}

func TestFenceLifecycle(t *testing.T) {
	ctx := mock_gpu.NewContext()

	f, err := ctx.CreateFence(true)
	require.NoError(t, err)
	assert.True(t, f.Signaled())
	assert.NoError(t, f.Wait(gpu.WaitForever))

	// a signaled fence cannot guard a submission until reset
	rec, err := ctx.CreateCommandRecorder("r")
	require.NoError(t, err)
	cb, err := rec.Finish()
	require.NoError(t, err)
	assert.Error(t, ctx.Queue().Submit(cb, nil, nil, f))

	require.NoError(t, f.Reset())
	submitEmpty(t, ctx, f)
	assert.Equal(t, 1, ctx.InFlight())
	assert.Error(t, f.Reset())

	require.NoError(t, f.Wait(time.Millisecond))
	assert.True(t, f.Signaled())
	assert.Equal(t, 0, ctx.InFlight())
	assert.Equal(t, 1, ctx.MaxInFlight())
}

func TestHeldFenceTimesOut(t *testing.T) {
	ctx := mock_gpu.NewContext()
	f, err := ctx.CreateFence(false)
	require.NoError(t, err)
	submitEmpty(t, ctx, f)

	ctx.HoldFences(true)
	assert.ErrorIs(t, f.Wait(time.Millisecond), gpu.ErrFenceTimeout)

	require.NoError(t, ctx.Queue().WaitIdle())
	assert.True(t, f.Signaled())
	assert.Equal(t, 1, ctx.WaitIdleCalls())
}

func TestBufferMapping(t *testing.T) {
	ctx := mock_gpu.NewContext()
	b, err := ctx.CreateUniformBuffer("ubo", 16)
	require.NoError(t, err)

	dst, err := b.Map(4, 4)
	require.NoError(t, err)
	copy(dst, []byte{1, 2, 3, 4})
	_, err = b.Map(0, 4)
	assert.Error(t, err, "double map")
	require.NoError(t, b.Unmap())

	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0}, b.(*mock_gpu.Buffer).Bytes())
	_, err = b.Map(12, 8)
	assert.Error(t, err)
}

func TestFailureInjection(t *testing.T) {
	boom := errors.New("boom")
	ctx := mock_gpu.NewContext(mock_gpu.WithFailure(mock_gpu.OpCreateBatch, boom))

	_, err := ctx.CreateBatch("b", []byte{0}, []byte{0, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, boom)

	ctx.Fail(mock_gpu.OpCreateBatch, nil)
	b, err := ctx.CreateBatch("b", []byte{0}, []byte{0, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.Live(mock_gpu.KindBatch))
	b.Release()
	assert.Equal(t, 0, ctx.Live(mock_gpu.KindBatch))
	assert.Equal(t, 1, ctx.Created(mock_gpu.KindBatch))
}

func TestRecorderRejectsOutOfOrderCommands(t *testing.T) {
	ctx := mock_gpu.NewContext()
	img, err := ctx.CreateImage(gpu.ImageDescriptor{Label: "color", Width: 2, Height: 2})
	require.NoError(t, err)

	rec, err := ctx.CreateCommandRecorder("r")
	require.NoError(t, err)
	// color attachment still in the undefined layout
	rec.BeginRenderPass(gpu.RenderPassDescriptor{Label: "main", Color: img})
	_, err = rec.Finish()
	assert.Error(t, err)

	rec, err = ctx.CreateCommandRecorder("r2")
	require.NoError(t, err)
	rec.ImageBarrier(gpu.ImageBarrier{Image: img, NewLayout: gpu.ImageLayoutColorAttachment})
	rec.BeginRenderPass(gpu.RenderPassDescriptor{Label: "main", Color: img})
	rec.DrawIndexed(3)
	_, err = rec.Finish()
	assert.Error(t, err, "draw without a pipeline")
}

func TestSurfaceRotatesImages(t *testing.T) {
	ctx := mock_gpu.NewContext(mock_gpu.WithSurface(2, 8, 8))
	s := ctx.Surface()
	for range 3 {
		i, err := s.AcquireNext(nil)
		require.NoError(t, err)
		require.NoError(t, s.Present(i, nil))
	}
	assert.Equal(t, []int{0, 1, 0}, ctx.MockSurface().Presented())

	require.NoError(t, s.Configure(16, 4))
	w, h := s.Extent()
	assert.Equal(t, uint32(16), w)
	assert.Equal(t, uint32(4), h)
	assert.Equal(t, uint32(16), s.Image(1).Width())
}
