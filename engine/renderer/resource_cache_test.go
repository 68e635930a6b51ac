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
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ctx *mock_gpu.Context, s scene.Scene) (renderer.ResourceCache, renderer.UniformStream) {
	t.Helper()
	stream, err := renderer.NewUniformStream(ctx, s)
	require.NoError(t, err)
	cache, err := renderer.NewResourceCache(ctx, s, shader.NewProgramFactory(ctx), stream)
	require.NoError(t, err)
	return cache, stream
}

func TestResourceCacheDedup(t *testing.T) {
	cubeA := model.NewCubeMesh("cube", 1)
	// structurally identical to cubeA but a different mesh
	cubeB := model.NewCubeMesh("cube", 1)
	tri := positionOnlyMesh(t, "tri")

	red := material.NewMaterial(material.WithName("red"), material.WithBaseColor([4]float32{1, 0, 0, 1}))
	blue := material.NewMaterial(material.WithName("blue"), material.WithBaseColor([4]float32{0, 0, 1, 1}))

	s := scene.NewScene()
	root := s.CreateTransform(scene.NoParent)
	for _, m := range []model.Model{
		model.NewModel(cubeA, red),
		model.NewModel(cubeA, red),
		model.NewModel(cubeA, blue),
		model.NewModel(cubeB, red),
		model.NewModel(tri, blue),
		model.NewModel(tri, blue),
	} {
		s.CreateObject(m, s.CreateTransform(root))
	}

	ctx := mock_gpu.NewContext()
	cache, _ := newCache(t, ctx, s)

	assert.Equal(t, 3, cache.BatchCount())
	assert.Equal(t, 2, cache.ProgramCount())
	assert.Equal(t, 2, cache.PipelineCount())
	assert.Equal(t, 3, ctx.Created(mock_gpu.KindBatch))
	assert.Equal(t, 2, ctx.Created(mock_gpu.KindShaderProgram))
	assert.Equal(t, 2, ctx.Created(mock_gpu.KindPipeline))
	assert.Equal(t, 2, ctx.Created(mock_gpu.KindDescriptorSet))

	assert.NotSame(t, cache.Batch(cubeA), cache.Batch(cubeB))
	assert.Same(t, cache.Pipeline(cubeA.VertexLayout()), cache.Pipeline(cubeB.VertexLayout()))
	assert.NotSame(t, cache.Pipeline(cubeA.VertexLayout()), cache.Pipeline(tri.VertexLayout()))

	// the cube layout was first seen with the red material
	assert.Same(t, cache.Program(red), cache.Pipeline(cubeA.VertexLayout()).Program())
	assert.Same(t, cache.Program(blue), cache.Pipeline(tri.VertexLayout()).Program())
}

func TestResourceCachePipelineState(t *testing.T) {
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)
	ctx := mock_gpu.NewContext()
	cache, _ := newCache(t, ctx, s)

	p, ok := cache.Pipeline(common.PositionNormalUVLayout).(*mock_gpu.Pipeline)
	require.True(t, ok)
	assert.Equal(t, pipeline.DefaultFixedFunctionState(), p.State())
	assert.Equal(t, renderer.ColorTargetFormat, p.ColorFormat)
	assert.Equal(t, renderer.DepthTargetFormat, p.DepthFormat)

	state := p.State()
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, state.Topology)
	assert.Equal(t, wgpu.CullModeBack, state.CullMode)
	assert.Equal(t, wgpu.FrontFaceCW, state.FrontFace)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, state.DepthCompare)
	assert.False(t, state.BlendEnabled)
}

func TestResourceCacheMaterialBindings(t *testing.T) {
	tex := common.TextureStagingData{Levels: []common.TextureLevel{
		{Pixels: make([]byte, 4*4*4), Width: 4, Height: 4},
		{Pixels: make([]byte, 2*2*4), Width: 2, Height: 2},
	}}
	mesh := model.NewCubeMesh("cube", 1)
	textured := material.NewMaterial(material.WithName("textured"), material.WithTexture(&tex))
	plainA := material.NewMaterial(material.WithName("plain-a"))
	plainB := material.NewMaterial(material.WithName("plain-b"))

	s := scene.NewScene()
	for _, mat := range []material.Material{textured, plainA, plainB} {
		s.CreateObject(model.NewModel(mesh, mat), s.CreateTransform(scene.NoParent))
	}

	ctx := mock_gpu.NewContext()
	cache, stream := newCache(t, ctx, s)

	// one real texture plus one shared white texture
	assert.Equal(t, 2, ctx.Created(mock_gpu.KindTexture))
	assert.Equal(t, 1, ctx.Created(mock_gpu.KindSampler))

	ds, ok := cache.DescriptorSet(textured).(*mock_gpu.DescriptorSet)
	require.True(t, ok)
	require.Len(t, ds.Bindings, 4)
	byBinding := make(map[uint32]gpu.DescriptorBinding)
	for _, b := range ds.Bindings {
		byBinding[b.Binding] = b
	}
	assert.Same(t, stream.Buffer(), byBinding[0].Buffer)
	assert.Equal(t, stream.BlockSize(), byBinding[0].Size)
	assert.Equal(t, uint32(2), byBinding[1].Image.MipLevels())
	assert.NotNil(t, byBinding[2].Sampler)

	params, ok := byBinding[3].Buffer.(*mock_gpu.Buffer)
	require.True(t, ok)
	want := textured.Params()
	assert.Equal(t, want.Marshal(), params.Bytes())

	white := func(m material.Material) gpu.Image {
		d := cache.DescriptorSet(m).(*mock_gpu.DescriptorSet)
		for _, b := range d.Bindings {
			if b.Image != nil {
				return b.Image
			}
		}
		return nil
	}
	assert.Same(t, white(plainA), white(plainB))
	assert.Equal(t, uint32(1), white(plainA).Width())
}

func TestResourceCacheFailureIsFatal(t *testing.T) {
	boom := errors.New("out of memory")
	cases := []mock_gpu.Operation{
		mock_gpu.OpCreateBatch,
		mock_gpu.OpCreateShaderProgram,
		mock_gpu.OpCreateTexture,
		mock_gpu.OpCreateDescriptorSet,
		mock_gpu.OpCreateGraphicsPipeline,
	}
	for _, op := range cases {
		t.Run(string(op), func(t *testing.T) {
			m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
			s, _, _ := twoObjectScene(m)
			ctx := mock_gpu.NewContext()

			stream, err := renderer.NewUniformStream(ctx, s)
			require.NoError(t, err)
			ctx.Fail(op, boom)

			cache, err := renderer.NewResourceCache(ctx, s, shader.NewProgramFactory(ctx), stream)
			require.ErrorIs(t, err, boom)
			assert.Nil(t, cache)

			stream.Release()
			requireNothingLive(t, ctx)
		})
	}
}

func TestResourceCacheFactoryError(t *testing.T) {
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial(material.WithShaderKey("missing")))
	s, _, _ := twoObjectScene(m)
	ctx := mock_gpu.NewContext()
	stream, err := renderer.NewUniformStream(ctx, s)
	require.NoError(t, err)
	defer stream.Release()

	_, err = renderer.NewResourceCache(ctx, s, shader.NewProgramFactory(ctx), stream)
	require.Error(t, err)
	assert.Zero(t, ctx.Live(mock_gpu.KindBatch))
	assert.Zero(t, ctx.Created(mock_gpu.KindPipeline))
}

func TestResourceCacheUnknownLookupPanics(t *testing.T) {
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)
	cache, _ := newCache(t, mock_gpu.NewContext(), s)

	assert.Panics(t, func() { cache.Batch(model.NewCubeMesh("stranger", 1)) })
	assert.Panics(t, func() { cache.Program(material.NewMaterial()) })
	assert.Panics(t, func() { cache.Pipeline(common.VertexLayout{Stride: 4}) })
}

func TestResourceCacheRelease(t *testing.T) {
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, _, _ := twoObjectScene(m)
	ctx := mock_gpu.NewContext()
	cache, stream := newCache(t, ctx, s)

	cache.Release()
	stream.Release()
	requireNothingLive(t, ctx)
	assert.Zero(t, cache.BatchCount())
}
