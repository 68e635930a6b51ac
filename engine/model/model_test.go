package model

import (
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeMesh(t *testing.T) {
	m := NewCubeMesh("cube", 1)
	assert.Equal(t, uint32(24), m.VertexCount())
	assert.Equal(t, uint32(36), m.IndexCount())
	assert.Len(t, m.Vertices(), 24*32)
	assert.Equal(t, common.PositionNormalUVLayout.Key(), m.VertexLayout().Key())
}

func TestCubeWinding(t *testing.T) {
	v, idx := CubeVertices(1)
	for i := 0; i < len(idx); i += 3 {
		a, b, c := v[idx[i]].Position, v[idx[i+1]].Position, v[idx[i+2]].Position
		e1 := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		e2 := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		n := [3]float32{e1[1]*e2[2] - e1[2]*e2[1], e1[2]*e2[0] - e1[0]*e2[2], e1[0]*e2[1] - e1[1]*e2[0]}
		want := v[idx[i]].Normal
		dot := n[0]*want[0] + n[1]*want[1] + n[2]*want[2]
		assert.Greater(t, dot, float32(0), "triangle %d winds inward", i/3)
	}
}

func TestNewMeshValidation(t *testing.T) {
	verts := []Vertex{{}, {}, {}}

	_, err := NewMesh(WithVertices(verts), WithIndices([]uint32{0, 1, 3}))
	assert.Error(t, err, "index out of range")

	_, err = NewMesh(WithVertices(verts), WithIndices([]uint32{0, 1}))
	assert.Error(t, err, "partial triangle")

	_, err = NewMesh(WithVertexData(make([]byte, 33), common.PositionNormalUVLayout))
	assert.Error(t, err, "ragged vertex data")

	m, err := NewMesh(WithMeshName("tri"), WithVertices(verts), WithIndices([]uint32{0, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, "tri", m.Name())
}

func TestStructurallyEqualMeshesAreDistinct(t *testing.T) {
	a := NewCubeMesh("cube", 1)
	b := NewCubeMesh("cube", 1)
	assert.True(t, a != b)

	set := map[Mesh]int{a: 1, b: 2}
	assert.Len(t, set, 2)
}

func TestNewModel(t *testing.T) {
	mesh := NewCubeMesh("cube", 1)
	mat := material.NewMaterial(material.WithName("plain"))
	m := NewModel(mesh, mat)
	assert.Equal(t, "cube", m.Name())
	assert.Equal(t, mesh, m.Mesh())
	assert.Equal(t, mat, m.Material())

	assert.Panics(t, func() { NewModel(nil, mat) })
}

func TestMarshalVertices(t *testing.T) {
	v := Vertex{Position: [3]float32{1, 0, 0}}
	b := MarshalVertices([]Vertex{v, v})
	assert.Len(t, b, 64)
	assert.Equal(t, v.Marshal(), b[32:])
	assert.Equal(t, 32, v.Size())
}
