package renderer_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoRenderer(t *testing.T, ctx *mock_gpu.Context, options ...renderer.RendererBuilderOption) (renderer.Renderer, scene.TransformID, scene.TransformID) {
	t.Helper()
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial(material.WithName("shared")))
	s, t1, t2 := twoObjectScene(m)
	r, err := renderer.NewRenderer(ctx, s, options...)
	require.NoError(t, err)
	return r, t1, t2
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to renderer.FrameState
		want     bool
	}{
		{renderer.FrameStateIdle, renderer.FrameStateAcquiring, true},
		{renderer.FrameStateAcquiring, renderer.FrameStateRecording, true},
		{renderer.FrameStateRecording, renderer.FrameStateSubmitted, true},
		{renderer.FrameStateSubmitted, renderer.FrameStatePresented, true},
		{renderer.FrameStatePresented, renderer.FrameStateIdle, true},
		{renderer.FrameStateRecording, renderer.FrameStateFailed, true},
		{renderer.FrameStateIdle, renderer.FrameStateRecording, false},
		{renderer.FrameStateAcquiring, renderer.FrameStateSubmitted, false},
		{renderer.FrameStateSubmitted, renderer.FrameStateIdle, false},
		{renderer.FrameStateIdle, renderer.FrameStateFailed, false},
		{renderer.FrameStateFailed, renderer.FrameStateIdle, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renderer.CanTransition(tt.from, tt.to), "%v -> %v", tt.from, tt.to)
	}
	assert.Equal(t, "SUBMITTED", renderer.FrameStateSubmitted.String())
}

func TestEndToEndTwoObjects(t *testing.T) {
	ctx := mock_gpu.NewContext()
	r, t1, t2 := newDemoRenderer(t, ctx)
	defer r.Release()

	assert.Equal(t, 1, r.Cache().BatchCount())
	assert.Equal(t, 1, r.Cache().ProgramCount())
	assert.Equal(t, 1, r.Cache().PipelineCount())

	stride := r.Stream().Stride()
	draws := r.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, t1, draws[0].Transform)
	assert.Equal(t, t2, draws[1].Transform)
	assert.Equal(t, uint32(0), draws[0].UniformOffset)
	assert.Equal(t, uint32(stride), draws[1].UniformOffset)
	assert.Same(t, draws[0].Batch, draws[1].Batch)
	assert.Same(t, draws[0].Pipeline, draws[1].Pipeline)
	assert.Same(t, draws[0].DescriptorSet, draws[1].DescriptorSet)

	var vp common.Mat4
	common.Perspective(vp[:], 1.0472, 640.0/480.0, 0.01, 100)
	require.NoError(t, r.RenderFrame(vp))

	s := r.Scene()
	data := r.Stream().Buffer().(*mock_gpu.Buffer).Bytes()
	got1 := readMat4(data[0:])
	got2 := readMat4(data[stride:])
	assert.True(t, common.ApproxEqualMat4(common.MulMat4(vp, s.AbsoluteMatrix(t1)), got1, eps))
	assert.True(t, common.ApproxEqualMat4(common.MulMat4(vp, s.AbsoluteMatrix(t2)), got2, eps))
	want2 := common.MulMat4(vp, common.MulMat4(s.LocalMatrix(t1), s.LocalMatrix(t2)))
	assert.True(t, common.ApproxEqualMat4(want2, got2, eps))
}

func TestFrameCommandSequence(t *testing.T) {
	ctx := mock_gpu.NewContext()
	r, _, _ := newDemoRenderer(t, ctx, renderer.WithExecutorOptions(renderer.WithClearColor([4]float64{0.1, 0.2, 0.3, 1})))
	defer r.Release()

	require.NoError(t, r.RenderFrame(common.IdentityMatrix()))
	subs := ctx.Submissions()
	require.Len(t, subs, 1)
	cmds := subs[0].Commands

	assert.Equal(t, []mock_gpu.CommandOp{
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdBeginRenderPass,
		mock_gpu.CmdSetViewport,
		mock_gpu.CmdSetScissor,
		mock_gpu.CmdBindBatch,
		mock_gpu.CmdBindPipeline,
		mock_gpu.CmdBindDescriptorSet,
		mock_gpu.CmdDrawIndexed,
		mock_gpu.CmdBindBatch,
		mock_gpu.CmdBindDescriptorSet,
		mock_gpu.CmdDrawIndexed,
		mock_gpu.CmdEndRenderPass,
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdBindComputePipeline,
		mock_gpu.CmdBindComputeDescriptorSet,
		mock_gpu.CmdDispatch,
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdImageBarrier,
		mock_gpu.CmdBlitImage,
		mock_gpu.CmdImageBarrier,
	}, mock_gpu.Ops(cmds))

	pass := mock_gpu.Filter(cmds, mock_gpu.CmdBeginRenderPass)[0].Pass
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 1}, pass.ClearColor)
	assert.Equal(t, float32(1), pass.ClearDepth)
	assert.Same(t, r.PostProcess().ColorTarget(), pass.Color)
	assert.Same(t, r.PostProcess().DepthTarget(), pass.Depth)

	assert.Equal(t, [6]float32{0, 0, 640, 480, 0, 1}, mock_gpu.Filter(cmds, mock_gpu.CmdSetViewport)[0].Viewport)
	assert.Equal(t, [4]uint32{0, 0, 640, 480}, mock_gpu.Filter(cmds, mock_gpu.CmdSetScissor)[0].Scissor)

	sets := mock_gpu.Filter(cmds, mock_gpu.CmdBindDescriptorSet)
	assert.Equal(t, []uint32{0}, sets[0].DynamicOffsets)
	assert.Equal(t, []uint32{uint32(r.Stream().Stride())}, sets[1].DynamicOffsets)
	for _, d := range mock_gpu.Filter(cmds, mock_gpu.CmdDrawIndexed) {
		assert.Equal(t, uint32(36), d.IndexCount)
	}

	assert.Equal(t, [3]uint32{40, 30, 1}, mock_gpu.Filter(cmds, mock_gpu.CmdDispatch)[0].Groups)

	swap := ctx.Surface().Image(0)
	post := r.PostProcess()
	type transition struct {
		image    gpu.Image
		from, to gpu.ImageLayout
	}
	var got []transition
	for _, c := range mock_gpu.Filter(cmds, mock_gpu.CmdImageBarrier) {
		got = append(got, transition{c.Barrier.Image, c.Barrier.OldLayout, c.Barrier.NewLayout})
	}
	assert.Equal(t, []transition{
		{post.ColorTarget(), gpu.ImageLayoutUndefined, gpu.ImageLayoutColorAttachment},
		{post.DepthTarget(), gpu.ImageLayoutUndefined, gpu.ImageLayoutDepthAttachment},
		{post.ColorTarget(), gpu.ImageLayoutColorAttachment, gpu.ImageLayoutShaderReadOnly},
		{post.OutputTarget(), gpu.ImageLayoutUndefined, gpu.ImageLayoutGeneral},
		{post.OutputTarget(), gpu.ImageLayoutGeneral, gpu.ImageLayoutTransferSrc},
		{swap, gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDst},
		{swap, gpu.ImageLayoutTransferDst, gpu.ImageLayoutPresentSrc},
	}, got)

	barriers := mock_gpu.Filter(cmds, mock_gpu.CmdImageBarrier)
	colorBarrier := barriers[0].Barrier
	assert.Equal(t, gpu.PipelineStageComputeShader, colorBarrier.SrcStage)
	assert.Equal(t, gpu.PipelineStageColorAttachmentOutput, colorBarrier.DstStage)
	assert.Equal(t, gpu.AccessNone, colorBarrier.SrcAccess)
	assert.Equal(t, gpu.AccessColorAttachmentWrite, colorBarrier.DstAccess)

	depth := barriers[1].Barrier
	assert.Equal(t, gpu.PipelineStageLateFragmentTests, depth.SrcStage)
	assert.Equal(t, gpu.PipelineStageEarlyFragmentTests|gpu.PipelineStageLateFragmentTests, depth.DstStage)
	assert.Equal(t, gpu.AccessDepthStencilAttachmentWrite, depth.SrcAccess)
	assert.Equal(t, gpu.AccessDepthStencilAttachmentRead|gpu.AccessDepthStencilAttachmentWrite, depth.DstAccess)
	assert.Zero(t, depth.DstStage&gpu.PipelineStageColorAttachmentOutput)
	assert.Zero(t, depth.DstAccess&gpu.AccessColorAttachmentWrite)

	compute := barriers[3].Barrier
	assert.Equal(t, gpu.PipelineStageTransfer, compute.SrcStage)
	assert.Equal(t, gpu.PipelineStageComputeShader, compute.DstStage)
	assert.Equal(t, gpu.AccessNone, compute.SrcAccess)
	assert.Equal(t, gpu.AccessShaderWrite, compute.DstAccess)

	blit := mock_gpu.Filter(cmds, mock_gpu.CmdBlitImage)[0]
	assert.Same(t, post.OutputTarget(), blit.Src)
	assert.Same(t, swap, blit.Dst)
	assert.True(t, blit.FlipY)
}

func TestFramesInFlightBounded(t *testing.T) {
	ctx := mock_gpu.NewContext(mock_gpu.WithSurface(2, 320, 200))
	r, _, _ := newDemoRenderer(t, ctx)
	defer r.Release()

	for i := 0; i < 9; i++ {
		require.NoError(t, r.RenderFrame(common.IdentityMatrix()))
		assert.LessOrEqual(t, ctx.InFlight(), 2)
	}
	assert.Equal(t, 2, ctx.MaxInFlight())
	assert.Equal(t, uint64(9), r.Executor().Frames())
	assert.Equal(t, renderer.FrameStateIdle, r.Executor().State())

	surface := ctx.MockSurface()
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1, 0, 1, 0}, surface.Acquired())
	assert.Equal(t, surface.Acquired(), surface.Presented())

	// every frame binds its slot's uniform region
	regionSize := r.Stream().RegionOffset(1)
	for i, sub := range ctx.Submissions() {
		sets := mock_gpu.Filter(sub.Commands, mock_gpu.CmdBindDescriptorSet)
		base := uint32(uint64(i%2) * regionSize)
		assert.Equal(t, []uint32{base}, sets[0].DynamicOffsets, "frame %d", i)
		assert.NotNil(t, sub.Fence)
		assert.NotNil(t, sub.Wait)
		assert.NotNil(t, sub.Signal)
	}
}

func TestFrameWaitsForSlotFence(t *testing.T) {
	ctx := mock_gpu.NewContext(mock_gpu.WithSurface(3, 64, 64))
	r, _, _ := newDemoRenderer(t, ctx)
	defer r.Release()

	ctx.HoldFences(true)
	// fences start signaled, so one frame per slot goes through
	for i := 0; i < 3; i++ {
		require.NoError(t, r.RenderFrame(common.IdentityMatrix()))
	}
	buf := r.Stream().Buffer().(*mock_gpu.Buffer)
	slot0 := r.Stream().RegionOffset(1)
	before := buf.Bytes()[:slot0]
	maps := buf.Maps()

	// a different camera so an early write into slot 0 would show up
	err := r.RenderFrame(common.TranslationMatrix(0, 0, -10))
	require.ErrorIs(t, err, gpu.ErrFenceTimeout)
	assert.Equal(t, before, buf.Bytes()[:slot0], "slot 0 region written while its fence was held")
	assert.Equal(t, maps, buf.Maps())

	var ferr *renderer.FrameError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, renderer.FrameStateAcquiring, ferr.State)
	assert.Equal(t, uint64(3), ferr.Frame)
	assert.Len(t, ctx.Submissions(), 3)
}

func TestFrameFailureIsTerminal(t *testing.T) {
	boom := errors.New("device lost")
	tests := []struct {
		op    mock_gpu.Operation
		state renderer.FrameState
	}{
		{mock_gpu.OpAcquire, renderer.FrameStateAcquiring},
		{mock_gpu.OpFenceWait, renderer.FrameStateAcquiring},
		{mock_gpu.OpMap, renderer.FrameStateRecording},
		{mock_gpu.OpCreateCommandRecorder, renderer.FrameStateRecording},
		{mock_gpu.OpSubmit, renderer.FrameStateRecording},
		{mock_gpu.OpPresent, renderer.FrameStateSubmitted},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			ctx := mock_gpu.NewContext()
			r, _, _ := newDemoRenderer(t, ctx)
			defer r.Release()

			require.NoError(t, r.RenderFrame(common.IdentityMatrix()))
			ctx.Fail(tt.op, boom)

			err := r.RenderFrame(common.IdentityMatrix())
			require.ErrorIs(t, err, boom)
			var ferr *renderer.FrameError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.state, ferr.State)
			assert.Equal(t, renderer.FrameStateFailed, r.Executor().State())

			// no retry, even once the device recovers
			ctx.Fail(tt.op, nil)
			assert.ErrorIs(t, r.RenderFrame(common.IdentityMatrix()), renderer.ErrExecutorFailed)
			assert.Equal(t, uint64(1), r.Executor().Frames())
		})
	}
}

func TestRecordingErrorFailsFrame(t *testing.T) {
	ctx := mock_gpu.NewContext()
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)
	r, err := renderer.NewRenderer(ctx, s)
	require.NoError(t, err)
	defer r.Release()

	// a draw list whose offset breaks the alignment rule is rejected by the recorder
	draws := append([]renderer.DrawDescriptor(nil), r.Draws()...)
	draws[1].UniformOffset = 4
	fe, err := renderer.NewFrameExecutor(ctx, draws, r.Stream(), r.PostProcess())
	require.NoError(t, err)
	defer fe.Release()

	err = fe.RenderFrame(common.IdentityMatrix())
	var ferr *renderer.FrameError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, renderer.FrameStateRecording, ferr.State)
	assert.Empty(t, ctx.Submissions())
}

func TestFrameExecutorNeedsRegionPerSlot(t *testing.T) {
	ctx := mock_gpu.NewContext()
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)
	stream, err := renderer.NewUniformStream(ctx, s)
	require.NoError(t, err)
	defer stream.Release()

	_, err = renderer.NewFrameExecutor(ctx, nil, stream, nil)
	require.Error(t, err)
	assert.Zero(t, ctx.Live(mock_gpu.KindFence))
}

func TestRendererShutdownAndRelease(t *testing.T) {
	ctx := mock_gpu.NewContext()
	r, _, _ := newDemoRenderer(t, ctx)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.RenderFrame(common.IdentityMatrix()))
	}
	require.NoError(t, r.Shutdown())
	assert.Zero(t, ctx.InFlight())

	r.Release()
	r.Release()
	requireNothingLive(t, ctx)
	assert.GreaterOrEqual(t, ctx.WaitIdleCalls(), 1)
	assert.ErrorIs(t, r.RenderFrame(common.IdentityMatrix()), renderer.ErrExecutorFailed)
}

func TestRendererConstructionFailureReleases(t *testing.T) {
	boom := errors.New("no compute")
	ctx := mock_gpu.NewContext(mock_gpu.WithFailure(mock_gpu.OpCreateComputePipeline, boom))
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)

	r, err := renderer.NewRenderer(ctx, s)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, r)
	requireNothingLive(t, ctx)
}

func TestSetExposureWritesParams(t *testing.T) {
	ctx := mock_gpu.NewContext()
	r, _, _ := newDemoRenderer(t, ctx, renderer.WithPostProcessOptions(renderer.WithExposure(2)))
	defer r.Release()

	assert.Equal(t, float32(2), r.PostProcess().Exposure())
	require.NoError(t, r.SetExposure(0.5))
	assert.Equal(t, float32(0.5), r.PostProcess().Exposure())

	params := renderer.PostProcessParams{Exposure: 0.5, Vignette: 0.35, Width: 640, Height: 480}
	assert.Len(t, params.Marshal(), 16)
}
