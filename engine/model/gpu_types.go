package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/excess/common"
)

// GPUVertexSource is the WGSL VertexInput struct matching Vertex.
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUPerObjectUniformsSource is the WGSL PerObjectUniforms struct matching GPUPerObjectUniforms.
//
//go:embed assets/per_object.wgsl
var GPUPerObjectUniformsSource string

// Vertex is one interleaved vertex in the PositionNormalUV layout.
// Matches common.PositionNormalUVLayout exactly (32 bytes).
type Vertex struct {
	Position [3]float32 // offset 0: object-space position (12 bytes)
	Normal   [3]float32 // offset 12: object-space normal (12 bytes)
	UV       [2]float32 // offset 24: texture coordinate (8 bytes)
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (v *Vertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// Marshal serializes the vertex into a 32-byte little-endian buffer.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, common.PositionNormalUVLayout.Stride)
	v.put(buf)
	return buf
}

func (v *Vertex) put(buf []byte) {
	fields := [8]float32{
		v.Position[0], v.Position[1], v.Position[2],
		v.Normal[0], v.Normal[1], v.Normal[2],
		v.UV[0], v.UV[1],
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

// MarshalVertices serializes a vertex slice into one contiguous interleaved buffer.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: len(vertices) * 32 bytes
func MarshalVertices(vertices []Vertex) []byte {
	stride := int(common.PositionNormalUVLayout.Stride)
	buf := make([]byte, len(vertices)*stride)
	for i := range vertices {
		vertices[i].put(buf[i*stride:])
	}
	return buf
}

// GPUPerObjectUniforms is the per-object uniform block written into the uniform stream once
// per transform and frame. Matches the WGSL PerObjectUniforms struct (128 bytes).
type GPUPerObjectUniforms struct {
	MVP        [16]float32 // offset 0: model-view-projection, column-major (mat4x4<f32>)
	MVPInverse [16]float32 // offset 64: inverse of MVP, zero when MVP is singular (mat4x4<f32>)
}

// Size returns the size of the GPUPerObjectUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (128)
func (g *GPUPerObjectUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the block into a new 128-byte buffer.
//
// Returns:
//   - []byte: the serialized block
func (g *GPUPerObjectUniforms) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.Put(buf)
	return buf
}

// Put serializes the block into dst, which must hold at least 128 bytes.
//
// Parameters:
//   - dst: the destination, typically a mapped uniform stream range
func (g *GPUPerObjectUniforms) Put(dst []byte) {
	_ = dst[127]
	for i := range 16 {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(g.MVP[i]))
		binary.LittleEndian.PutUint32(dst[64+i*4:], math.Float32bits(g.MVPInverse[i]))
	}
}
