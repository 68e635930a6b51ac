package loader

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/excess/engine/model"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor converts glTF primitives into engine meshes in the position/normal/uv layout.
type gltfMeshExtractor interface {
	// ExtractPrimitive converts one triangle primitive of a mesh.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh
	//   - primIndex: the index of the primitive within the mesh
	//
	// Returns:
	//   - model.Mesh: the converted mesh
	//   - error: error if the primitive is not triangles or its accessors are invalid
	ExtractPrimitive(meshIndex, primIndex int) (model.Mesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractPrimitive(meshIndex, primIndex int) (model.Mesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := &doc.Meshes[meshIndex]
	if primIndex < 0 || primIndex >= len(mesh.Primitives) {
		return nil, fmt.Errorf("mesh %d primitive index %d out of range", meshIndex, primIndex)
	}
	prim := &mesh.Primitives[primIndex]

	if !gltfIsTriangles(prim) {
		return nil, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadFloats(posAccessor, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]model.Vertex, len(positions)/3)
	for i := range vertices {
		copy(vertices[i].Position[:], positions[i*3:i*3+3])
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.ReadIndices(*prim.Indices); err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= len(vertices) {
				return nil, fmt.Errorf("index %d out of range for %d vertices", idx, len(vertices))
			}
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if acc, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadFloats(acc, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		if len(normals) != len(positions) {
			return nil, fmt.Errorf("NORMAL count %d does not match POSITION count %d", len(normals)/3, len(vertices))
		}
		for i := range vertices {
			copy(vertices[i].Normal[:], normals[i*3:i*3+3])
		}
	} else {
		generateNormals(vertices, indices)
	}

	if acc, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.ReadFloats(acc, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to read texture coordinates: %w", err)
		}
		if len(uvs)/2 != len(vertices) {
			return nil, fmt.Errorf("TEXCOORD_0 count %d does not match POSITION count %d", len(uvs)/2, len(vertices))
		}
		for i := range vertices {
			copy(vertices[i].UV[:], uvs[i*2:i*2+2])
		}
	}

	name := mesh.Name
	if name == "" {
		name = fmt.Sprintf("mesh%d", meshIndex)
	}
	if len(mesh.Primitives) > 1 {
		name = fmt.Sprintf("%s.%d", name, primIndex)
	}

	return model.NewMesh(
		model.WithMeshName(name),
		model.WithVertices(vertices),
		model.WithIndices(indices),
	)
}

// gltfIsTriangles reports whether a primitive uses the (default) TRIANGLES mode.
func gltfIsTriangles(prim *gltfPrimitive) bool {
	return prim.Mode == nil || *prim.Mode == gltfPrimitiveModeTriangles
}

// generateNormals computes smooth vertex normals from the triangle geometry when the
// primitive does not provide a NORMAL attribute. Area-weighted face normals are
// accumulated onto every vertex of each triangle and normalized at the end.
//
// Parameters:
//   - vertices: the vertex slice to write normal data into
//   - indices: the triangle index buffer
func generateNormals(vertices []model.Vertex, indices []uint32) {
	n := len(vertices)
	accum := make([][3]float32, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}

		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position
		edge1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		edge2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}

		// length proportional to triangle area
		faceNormal := [3]float32{
			edge1[1]*edge2[2] - edge1[2]*edge2[1],
			edge1[2]*edge2[0] - edge1[0]*edge2[2],
			edge1[0]*edge2[1] - edge1[1]*edge2[0],
		}

		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx][0] += faceNormal[0]
			accum[idx][1] += faceNormal[1]
			accum[idx][2] += faceNormal[2]
		}
	}

	for i, a := range accum {
		length := float32(math.Sqrt(float64(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])))
		if length < 1e-8 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = [3]float32{a[0] / length, a[1] / length, a[2] / length}
	}
}
