package material

import (
	"github.com/Carmen-Shannon/excess/common"
)

// DefaultShaderKey selects the built-in textured mesh shader.
const DefaultShaderKey = "mesh"

// material is the implementation of the Material interface.
type material struct {
	name      string
	shaderKey string
	baseColor [4]float32
	texture   *common.TextureStagingData
}

// Material defines the interface for the shader-selection parameters of a surface:
// which shader program draws it, its constant color and its optional texture.
//
// A Material is immutable after construction. Renderer caches key on the Material value
// itself, so two materials built with identical parameters still produce two shader programs.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// ShaderKey retrieves the key the shader-program factory uses to pick shader source.
	//
	// Returns:
	//   - string: the shader key
	ShaderKey() string

	// BaseColor retrieves the RGBA color multiplied with the sampled texture.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Texture retrieves the decoded texture pending upload, or nil when the material is untextured.
	//
	// Returns:
	//   - *common.TextureStagingData: the texture, or nil
	Texture() *common.TextureStagingData

	// Params returns the GPU uniform block for this material.
	//
	// Returns:
	//   - GPUMaterialParams: the material parameters
	Params() GPUMaterialParams
}

var _ Material = &material{}

// NewMaterial creates a new Material with the given options.
// Defaults: shader key DefaultShaderKey, opaque white base color, no texture.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: the new material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		shaderKey: DefaultShaderKey,
		baseColor: [4]float32{1, 1, 1, 1},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) ShaderKey() string {
	return m.shaderKey
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Texture() *common.TextureStagingData {
	return m.texture
}

func (m *material) Params() GPUMaterialParams {
	p := GPUMaterialParams{BaseColor: m.baseColor}
	if m.texture != nil {
		p.Flags |= MaterialFlagTextured
	}
	return p
}
