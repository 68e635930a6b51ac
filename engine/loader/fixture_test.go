package loader_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// gltfFixture builds small glTF documents in memory.
type gltfFixture struct {
	bin []byte
	doc map[string]any
}

// newTriangleFixture returns a document with one indexed triangle mesh (positions and uvs, no normals),
// one red material and three nodes: root (translated, with the mesh), child (matrix, with the mesh)
// and an empty scaled node under root.
func newTriangleFixture() *gltfFixture {
	childMatrix := []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 5, 1}
	f := &gltfFixture{}
	f.doc = map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"scene": 0,
		"scenes": []any{
			map[string]any{"nodes": []int{0}},
		},
		"nodes": []any{
			map[string]any{"name": "root", "mesh": 0, "translation": []float32{1, 2, 3}, "children": []int{1, 2}},
			map[string]any{"name": "child", "mesh": 0, "matrix": childMatrix},
			map[string]any{"name": "empty", "scale": []float32{2, 2, 2}},
		},
		"meshes": []any{
			map[string]any{"name": "tri", "primitives": []any{
				map[string]any{
					"attributes": map[string]int{"POSITION": 0, "TEXCOORD_0": 1},
					"indices":    2,
					"material":   0,
				},
			}},
		},
		"materials": []any{
			map[string]any{"name": "red", "pbrMetallicRoughness": map[string]any{
				"baseColorFactor": []float32{1, 0, 0, 1},
			}},
		},
	}

	pos := f.addFloats([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	uv := f.addFloats([]float32{0, 0, 1, 0, 0, 1})
	idx := f.addUint16([]uint16{0, 1, 2})
	f.doc["accessors"] = []any{
		map[string]any{"bufferView": pos, "componentType": 5126, "count": 3, "type": "VEC3"},
		map[string]any{"bufferView": uv, "componentType": 5126, "count": 3, "type": "VEC2"},
		map[string]any{"bufferView": idx, "componentType": 5123, "count": 3, "type": "SCALAR"},
	}
	return f
}

// addView appends data 4-byte aligned to the binary buffer and returns its bufferView index.
func (f *gltfFixture) addView(data []byte) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	views, _ := f.doc["bufferViews"].([]any)
	views = append(views, map[string]any{"buffer": 0, "byteOffset": len(f.bin), "byteLength": len(data)})
	f.bin = append(f.bin, data...)
	f.doc["bufferViews"] = views
	return len(views) - 1
}

func (f *gltfFixture) addFloats(values []float32) int {
	b := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return f.addView(b)
}

func (f *gltfFixture) addUint16(values []uint16) int {
	b := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return f.addView(b)
}

// embedImage stores encoded image bytes in a bufferView and makes material 0 use it as base color texture.
func (f *gltfFixture) embedImage(data []byte, mime string) {
	view := f.addView(data)
	f.doc["images"] = []any{map[string]any{"bufferView": view, "mimeType": mime}}
	f.doc["textures"] = []any{map[string]any{"source": 0}}
	mat := f.doc["materials"].([]any)[0].(map[string]any)
	mat["pbrMetallicRoughness"].(map[string]any)["baseColorTexture"] = map[string]any{"index": 0}
}

// gltfJSON renders the document with the buffer embedded as a base64 data URI.
func (f *gltfFixture) gltfJSON(t *testing.T) []byte {
	t.Helper()
	f.doc["buffers"] = []any{map[string]any{
		"byteLength": len(f.bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(f.bin),
	}}
	out, err := json.Marshal(f.doc)
	require.NoError(t, err)
	return out
}

// glb renders the document as a GLB container with the buffer in the BIN chunk.
func (f *gltfFixture) glb(t *testing.T) []byte {
	t.Helper()
	f.doc["buffers"] = []any{map[string]any{"byteLength": len(f.bin)}}
	jsonChunk, err := json.Marshal(f.doc)
	require.NoError(t, err)
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	binChunk := append([]byte(nil), f.bin...)
	for len(binChunk)%4 != 0 {
		binChunk = append(binChunk, 0)
	}

	var buf bytes.Buffer
	total := 12 + 8 + len(jsonChunk) + 8 + len(binChunk)
	for _, v := range []uint32{0x46546C67, 2, uint32(total), uint32(len(jsonChunk)), 0x4E4F534A} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.Write(jsonChunk)
	for _, v := range []uint32{uint32(len(binChunk)), 0x004E4942} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.Write(binChunk)
	return buf.Bytes()
}

// checkerImage returns a w x h image with distinct opaque colors per pixel.
func checkerImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: uint8(10 + 20*x + 30*y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
