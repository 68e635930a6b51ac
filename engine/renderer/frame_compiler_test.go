package renderer_test

import (
	"testing"

	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFrameOrder(t *testing.T) {
	cube := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial(material.WithName("a")))
	tri := model.NewModel(positionOnlyMesh(t, "tri"), material.NewMaterial(material.WithName("b")))

	s := scene.NewScene()
	shared := s.CreateTransform(scene.NoParent)
	other := s.CreateTransform(shared)
	// objects may share a transform
	o1 := s.CreateObject(tri, other)
	o2 := s.CreateObject(cube, shared)
	o3 := s.CreateObject(cube, other)

	ctx := mock_gpu.NewContext()
	cache, stream := newCache(t, ctx, s)
	draws := renderer.CompileFrame(s, cache, stream)

	require.Len(t, draws, 3)
	assert.Equal(t, []scene.ObjectID{o1, o2, o3}, []scene.ObjectID{draws[0].Object, draws[1].Object, draws[2].Object})
	assert.Equal(t, draws[0].UniformOffset, draws[2].UniformOffset)
	assert.Equal(t, stream.Offset(shared), draws[1].UniformOffset)
	assert.Equal(t, uint32(3), draws[0].IndexCount)
	assert.Equal(t, uint32(36), draws[1].IndexCount)
	assert.Same(t, cache.Pipeline(tri.Mesh().VertexLayout()), draws[0].Pipeline)
	assert.Same(t, cache.DescriptorSet(cube.Material()), draws[2].DescriptorSet)

	// recompiling yields identical descriptors
	assert.Equal(t, draws, renderer.CompileFrame(s, cache, stream))
}

func TestCompileFrameUnknownReferencesPanic(t *testing.T) {
	m := model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
	s, t1, _ := twoObjectScene(m)
	ctx := mock_gpu.NewContext()
	cache, stream := newCache(t, ctx, s)

	// a transform created after the stream has no uniform block
	s.CreateObject(m, s.CreateTransform(t1))
	assert.Panics(t, func() { renderer.CompileFrame(s, cache, stream) })

	// a mesh the cache never saw
	s2, _, _ := twoObjectScene(m)
	s2.CreateObject(model.NewModel(model.NewCubeMesh("late", 1), m.Material()), 0)
	assert.Panics(t, func() { renderer.CompileFrame(s2, cache, stream) })
}
