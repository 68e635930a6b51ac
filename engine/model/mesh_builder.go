package model

import "github.com/Carmen-Shannon/excess/common"

// MeshBuilderOption is a functional option for configuring a Mesh via NewMesh.
type MeshBuilderOption func(*mesh)

// WithMeshName is an option builder that sets the name of the Mesh.
//
// Parameters:
//   - name: the mesh identifier
//
// Returns:
//   - MeshBuilderOption: a function that applies the name option to a mesh
func WithMeshName(name string) MeshBuilderOption {
	return func(m *mesh) {
		m.name = name
	}
}

// WithVertexData is an option builder that sets raw interleaved vertex bytes and their layout.
//
// Parameters:
//   - data: the interleaved vertex bytes
//   - layout: the layout describing data
//
// Returns:
//   - MeshBuilderOption: a function that applies the vertex data option to a mesh
func WithVertexData(data []byte, layout common.VertexLayout) MeshBuilderOption {
	return func(m *mesh) {
		m.vertices = data
		m.layout = layout
	}
}

// WithVertices is an option builder that sets the vertex data from PositionNormalUV vertices.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - MeshBuilderOption: a function that applies the vertices option to a mesh
func WithVertices(vertices []Vertex) MeshBuilderOption {
	return func(m *mesh) {
		m.vertices = MarshalVertices(vertices)
		m.layout = common.PositionNormalUVLayout
	}
}

// WithIndices is an option builder that sets the triangle index list of the Mesh.
//
// Parameters:
//   - indices: the triangle indices
//
// Returns:
//   - MeshBuilderOption: a function that applies the indices option to a mesh
func WithIndices(indices []uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.indices = indices
	}
}
