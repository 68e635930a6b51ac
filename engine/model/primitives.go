package model

// cubeFaces lists each face of the unit cube as its outward normal plus the two in-plane axes
// spanning it, chosen so that u x v == normal.
var cubeFaces = [6]struct {
	n, u, v [3]float32
}{
	{n: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
	{n: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
	{n: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
	{n: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
	{n: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
	{n: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
}

// CubeVertices returns the 24 vertices and 36 indices of an axis-aligned cube centered at the
// origin with the given half extent. Each face carries its own normals and a full 0..1 UV square.
// Triangles wind counter-clockwise when viewed from outside.
//
// Parameters:
//   - halfExtent: half the edge length
//
// Returns:
//   - []Vertex: the vertices
//   - []uint32: the triangle indices
func CubeVertices(halfExtent float32) ([]Vertex, []uint32) {
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	for _, f := range cubeFaces {
		base := uint32(len(vertices))
		for _, c := range corners {
			var p [3]float32
			for i := 0; i < 3; i++ {
				p[i] = (f.n[i] + c[0]*f.u[i] + c[1]*f.v[i]) * halfExtent
			}
			vertices = append(vertices, Vertex{
				Position: p,
				Normal:   f.n,
				UV:       [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// NewCubeMesh builds a cube Mesh with the given half extent.
//
// Parameters:
//   - name: the mesh identifier
//   - halfExtent: half the edge length
//
// Returns:
//   - Mesh: the cube mesh
func NewCubeMesh(name string, halfExtent float32) Mesh {
	v, i := CubeVertices(halfExtent)
	m, err := NewMesh(WithMeshName(name), WithVertices(v), WithIndices(i))
	if err != nil {
		// generated data always satisfies the layout
		panic(err)
	}
	return m
}
