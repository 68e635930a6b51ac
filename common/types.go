// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"strconv"
	"strings"
)

// VertexFormat identifies the data type of a single vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUint32x4
	VertexFormatUnorm8x4
)

var vertexFormatNames = map[VertexFormat]string{
	VertexFormatFloat32:   "f32",
	VertexFormatFloat32x2: "f32x2",
	VertexFormatFloat32x3: "f32x3",
	VertexFormatFloat32x4: "f32x4",
	VertexFormatUint32:    "u32",
	VertexFormatUint32x4:  "u32x4",
	VertexFormatUnorm8x4:  "unorm8x4",
}

// Size returns the byte size of one attribute of this format.
//
// Returns:
//   - uint32: the size in bytes, or 0 for an unknown format
func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32, VertexFormatUnorm8x4:
		return 4
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4, VertexFormatUint32x4:
		return 16
	default:
		return 0
	}
}

func (f VertexFormat) String() string {
	if n, ok := vertexFormatNames[f]; ok {
		return n
	}
	return "VertexFormat(" + strconv.Itoa(int(f)) + ")"
}

// VertexAttribute describes one attribute inside an interleaved vertex.
type VertexAttribute struct {
	// Location is the shader input location the attribute feeds.
	Location uint32
	// Format is the attribute's data type.
	Format VertexFormat
	// Offset is the byte offset of the attribute from the start of the vertex.
	Offset uint32
}

// VertexLayout is the attribute/stride description of a mesh's interleaved vertex data.
// Two layouts select the same graphics pipeline when their Key values are equal.
type VertexLayout struct {
	// Stride is the byte distance between consecutive vertices.
	Stride uint32
	// Attributes lists every attribute in the vertex.
	Attributes []VertexAttribute
}

// Key returns a canonical string identifying the layout, suitable as a map key.
//
// Returns:
//   - string: the canonical key
func (l VertexLayout) Key() string {
	var sb strings.Builder
	sb.WriteString("stride=")
	sb.WriteString(strconv.FormatUint(uint64(l.Stride), 10))
	for _, a := range l.Attributes {
		fmt.Fprintf(&sb, ";%d:%s@%d", a.Location, a.Format, a.Offset)
	}
	return sb.String()
}

// Validate checks that every attribute fits inside the stride.
//
// Returns:
//   - error: an error describing the first attribute that overflows the stride, or nil
func (l VertexLayout) Validate() error {
	if l.Stride == 0 {
		return fmt.Errorf("vertex layout has zero stride")
	}
	for _, a := range l.Attributes {
		size := a.Format.Size()
		if size == 0 {
			return fmt.Errorf("vertex attribute at location %d has unknown format %v", a.Location, a.Format)
		}
		if a.Offset+size > l.Stride {
			return fmt.Errorf("vertex attribute at location %d (offset %d, size %d) exceeds stride %d", a.Location, a.Offset, size, l.Stride)
		}
	}
	return nil
}

// PositionNormalUVLayout is the interleaved layout produced by the scene importer and the
// procedural primitives: position (f32x3), normal (f32x3), uv (f32x2).
var PositionNormalUVLayout = VertexLayout{
	Stride: 32,
	Attributes: []VertexAttribute{
		{Location: 0, Format: VertexFormatFloat32x3, Offset: 0},
		{Location: 1, Format: VertexFormatFloat32x3, Offset: 12},
		{Location: 2, Format: VertexFormatFloat32x2, Offset: 24},
	},
}

// TextureLevel holds the RGBA8 pixels of one mip level.
type TextureLevel struct {
	// Pixels is tightly packed RGBA data, 4 bytes per pixel.
	Pixels []byte
	// Width is the level width in pixels.
	Width uint32
	// Height is the level height in pixels.
	Height uint32
}

// TextureStagingData holds decoded pixel data for a texture pending GPU upload.
// Levels[0] is the base image; further entries are successively halved mip levels.
type TextureStagingData struct {
	Levels []TextureLevel
}

// Width returns the base level width, or 0 when no level is present.
func (t TextureStagingData) Width() uint32 {
	if len(t.Levels) == 0 {
		return 0
	}
	return t.Levels[0].Width
}

// Height returns the base level height, or 0 when no level is present.
func (t TextureStagingData) Height() uint32 {
	if len(t.Levels) == 0 {
		return 0
	}
	return t.Levels[0].Height
}

// WhiteTexture returns a single-level 1x1 opaque white texture.
func WhiteTexture() TextureStagingData {
	return TextureStagingData{
		Levels: []TextureLevel{{Pixels: []byte{0xff, 0xff, 0xff, 0xff}, Width: 1, Height: 1}},
	}
}
