package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// Material flag bits carried in GPUMaterialParams.Flags.
const (
	// MaterialFlagTextured marks a material whose texture binding holds real image data.
	MaterialFlagTextured uint32 = 1 << iota
)

// GPUMaterialParamsSource is the WGSL MaterialParams struct matching GPUMaterialParams.
//
//go:embed assets/material_params.wgsl
var GPUMaterialParamsSource string

// GPUMaterialParams is the GPU-aligned uniform for the mesh fragment shader.
// Matches the WGSL MaterialParams struct (see GPUMaterialParamsSource).
// Size: 32 bytes (vec4<f32> + u32 + padding, std140 aligned).
type GPUMaterialParams struct {
	BaseColor [4]float32 // offset 0: RGBA base color (16 bytes)
	Flags     uint32     // offset 16: MaterialFlag bits (4 bytes)
	_         [3]uint32  // offset 20: padding to 32 bytes
}

// Size returns the size of the GPUMaterialParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterialParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUMaterialParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.BaseColor[3]))
	binary.LittleEndian.PutUint32(buf[16:20], g.Flags)
	return buf
}
