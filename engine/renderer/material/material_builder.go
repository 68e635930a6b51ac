package material

import (
	"github.com/Carmen-Shannon/excess/common"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithShaderKey is an option builder that selects the shader program source for the material.
// An empty key keeps DefaultShaderKey.
//
// Parameters:
//   - key: the shader key
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader key option to a material
func WithShaderKey(key string) MaterialBuilderOption {
	return func(m *material) {
		m.shaderKey = common.Coalesce(key, DefaultShaderKey)
	}
}

// WithBaseColor is an option builder that sets the RGBA base color of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithTexture is an option builder that attaches decoded texture data to the material.
// The data is uploaded once by the renderer's resource cache.
//
// Parameters:
//   - tex: the texture staging data, nil for an untextured material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(tex *common.TextureStagingData) MaterialBuilderOption {
	return func(m *material) {
		m.texture = tex
	}
}
