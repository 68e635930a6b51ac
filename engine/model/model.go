package model

import (
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
)

// model is the implementation of the Model interface.
type model struct {
	name     string
	mesh     Mesh
	material material.Material
}

// Model defines the interface for a renderable asset: one Mesh drawn with one Material.
// Many scene objects may share a single Model, and many Models may share a Mesh or a Material.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Mesh retrieves the geometry drawn by this model.
	//
	// Returns:
	//   - Mesh: the mesh
	Mesh() Mesh

	// Material retrieves the material the mesh is drawn with.
	//
	// Returns:
	//   - material.Material: the material
	Material() material.Material
}

var _ Model = &model{}

// NewModel creates a new Model pairing a mesh with a material.
// Panics if mesh or mat is nil; a model without either cannot be drawn.
//
// Parameters:
//   - mesh: the geometry
//   - mat: the material
//   - options: variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the new model
func NewModel(mesh Mesh, mat material.Material, options ...ModelBuilderOption) Model {
	if mesh == nil || mat == nil {
		panic("model: mesh and material are required")
	}
	m := &model{
		name:     mesh.Name(),
		mesh:     mesh,
		material: mat,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() Mesh {
	return m.mesh
}

func (m *model) Material() material.Material {
	return m.material
}
