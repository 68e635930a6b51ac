package model

import (
	"fmt"

	"github.com/Carmen-Shannon/excess/common"
)

// mesh is the implementation of the Mesh interface.
type mesh struct {
	name     string
	vertices []byte
	indices  []uint32
	layout   common.VertexLayout
}

// Mesh is immutable interleaved vertex data plus a triangle index list.
// Two meshes are the same mesh only if they are the same value; structurally equal
// meshes created separately remain distinct, so the resource cache uploads each once.
type Mesh interface {
	// Name retrieves the mesh identifier.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// Vertices returns the interleaved vertex bytes. Callers must not modify the slice.
	//
	// Returns:
	//   - []byte: the vertex data
	Vertices() []byte

	// Indices returns the triangle index list. Callers must not modify the slice.
	//
	// Returns:
	//   - []uint32: the indices
	Indices() []uint32

	// IndexCount returns the number of indices drawn for this mesh.
	//
	// Returns:
	//   - uint32: the index count
	IndexCount() uint32

	// VertexCount returns the number of vertices described by the vertex data.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// VertexLayout returns the attribute/stride description of the vertex data.
	//
	// Returns:
	//   - common.VertexLayout: the layout
	VertexLayout() common.VertexLayout
}

var _ Mesh = &mesh{}

// NewMesh creates a new Mesh from the given options and validates it.
// Indices must reference existing vertices and the vertex data must be a whole number of strides.
//
// Parameters:
//   - options: variadic list of MeshBuilderOption functions to configure the Mesh
//
// Returns:
//   - Mesh: the new mesh
//   - error: an error if the data is inconsistent with the layout
func NewMesh(options ...MeshBuilderOption) (Mesh, error) {
	m := &mesh{layout: common.PositionNormalUVLayout}
	for _, opt := range options {
		opt(m)
	}

	if err := m.layout.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %q: %w", m.name, err)
	}
	if len(m.vertices)%int(m.layout.Stride) != 0 {
		return nil, fmt.Errorf("mesh %q: vertex data length %d is not a multiple of stride %d", m.name, len(m.vertices), m.layout.Stride)
	}
	if len(m.indices)%3 != 0 {
		return nil, fmt.Errorf("mesh %q: index count %d is not a multiple of 3", m.name, len(m.indices))
	}
	vc := m.VertexCount()
	for i, idx := range m.indices {
		if idx >= vc {
			return nil, fmt.Errorf("mesh %q: index %d at position %d out of range for %d vertices", m.name, idx, i, vc)
		}
	}
	return m, nil
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) Vertices() []byte {
	return m.vertices
}

func (m *mesh) Indices() []uint32 {
	return m.indices
}

func (m *mesh) IndexCount() uint32 {
	return uint32(len(m.indices))
}

func (m *mesh) VertexCount() uint32 {
	return uint32(len(m.vertices)) / m.layout.Stride
}

func (m *mesh) VertexLayout() common.VertexLayout {
	return m.layout
}
