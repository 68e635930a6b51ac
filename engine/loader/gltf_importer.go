package loader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// ImportResult describes what one import added to a scene.
type ImportResult struct {
	// Roots are the transforms created for the imported scene's root nodes, in document order.
	Roots []scene.TransformID
	// Transforms holds one transform per visited node in depth-first order.
	Transforms []scene.TransformID
	// Objects holds one object per triangle primitive, in traversal order.
	Objects []scene.ObjectID
	// Models holds the distinct models referenced by Objects, in first-use order.
	Models []model.Model
}

// primitiveKey identifies a primitive of a glTF mesh.
type primitiveKey struct {
	mesh, prim int
}

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	mu *sync.Mutex

	name      string
	parser    gltfParser
	meshes    gltfMeshExtractor
	materials gltfMaterialExtractor
	shaderKey string

	models          map[primitiveKey]model.Model
	materialCache   map[int]material.Material
	defaultMaterial material.Material
}

// gltfImporter turns a parsed glTF document into transforms and objects of a scene.
// Meshes and materials are converted once per importer and shared by every object and every
// later Instantiate call that refers to them.
type gltfImporter interface {
	// Instantiate walks the chosen glTF scene depth-first and adds it under parent.
	// All geometry is converted before the scene is touched, so a failed import leaves s unchanged.
	//
	// Parameters:
	//   - s: the scene to populate
	//   - parent: the transform the imported roots attach to, or scene.NoParent
	//   - sceneIndex: the glTF scene to import, or -1 for the document's default
	//
	// Returns:
	//   - *ImportResult: the created transforms and objects
	//   - error: error if the document cannot be converted
	Instantiate(s scene.Scene, parent scene.TransformID, sceneIndex int) (*ImportResult, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter parses a glTF or GLB document and prepares it for instantiation.
//
// Parameters:
//   - name: the document name, used in errors and for format detection
//   - data: the file contents
//   - baseDir: directory for relative URIs, empty to disallow them
//   - shaderKey: the shader program imported materials render with
//   - flags: texture import flags for material images
//
// Returns:
//   - gltfImporter: the importer
//   - error: ErrUnsupportedFormat if data is not glTF, or the parse error
func newGLTFImporter(name string, data []byte, baseDir, shaderKey string, flags TextureFlags) (gltfImporter, error) {
	isGLB, err := detectModel(name, data)
	if err != nil {
		return nil, err
	}

	parser := newGLTFParser()
	if err := parser.Parse(data, isGLB, baseDir); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return &gltfImporterImpl{
		mu:            &sync.Mutex{},
		name:          name,
		parser:        parser,
		meshes:        newGLTFMeshExtractor(parser),
		materials:     newGLTFMaterialExtractor(parser, shaderKey, flags),
		shaderKey:     shaderKey,
		models:        make(map[primitiveKey]model.Model),
		materialCache: make(map[int]material.Material),
	}, nil
}

// gltfPlacement is a node visit recorded before the scene is modified.
type gltfPlacement struct {
	node   int
	parent int // index into the placement list, -1 for a root
}

func (imp *gltfImporterImpl) Instantiate(s scene.Scene, parent scene.TransformID, sceneIndex int) (*ImportResult, error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	doc := imp.parser.Document()

	roots, err := imp.rootNodes(sceneIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imp.name, err)
	}

	placements, err := imp.walk(roots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imp.name, err)
	}

	// convert every referenced primitive up front
	nodeModels := make([][]model.Model, len(placements))
	for i, p := range placements {
		node := &doc.Nodes[p.node]
		if node.Mesh == nil {
			continue
		}
		if nodeModels[i], err = imp.meshModels(*node.Mesh); err != nil {
			return nil, fmt.Errorf("%s: node %d: %w", imp.name, p.node, err)
		}
	}

	result := &ImportResult{
		Transforms: make([]scene.TransformID, len(placements)),
	}
	seen := make(map[model.Model]bool)
	for i, p := range placements {
		tParent := parent
		if p.parent >= 0 {
			tParent = result.Transforms[p.parent]
		}

		t := s.CreateMatrixTransform(tParent, gltfNodeMatrix(&doc.Nodes[p.node]))
		result.Transforms[i] = t
		if p.parent < 0 {
			result.Roots = append(result.Roots, t)
		}

		for _, m := range nodeModels[i] {
			result.Objects = append(result.Objects, s.CreateObject(m, t))
			if !seen[m] {
				seen[m] = true
				result.Models = append(result.Models, m)
			}
		}
	}

	common.Logger().Info("scene imported",
		"source", imp.name,
		"transforms", len(result.Transforms),
		"objects", len(result.Objects),
		"models", len(result.Models),
	)
	return result, nil
}

// rootNodes picks the node list to traverse: the requested scene, the document's default
// scene, the first scene, or every parentless node when the document has no scenes.
func (imp *gltfImporterImpl) rootNodes(sceneIndex int) ([]int, error) {
	doc := imp.parser.Document()

	if sceneIndex < 0 && doc.Scene != nil {
		sceneIndex = *doc.Scene
	}
	if sceneIndex < 0 && len(doc.Scenes) > 0 {
		sceneIndex = 0
	}
	if sceneIndex >= 0 {
		if sceneIndex >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene index %d out of range", sceneIndex)
		}
		return doc.Scenes[sceneIndex].Nodes, nil
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

// walk lists nodes depth-first, parents before children. A node reachable twice is rejected,
// since glTF node hierarchies must be disjoint trees.
func (imp *gltfImporterImpl) walk(roots []int) ([]gltfPlacement, error) {
	doc := imp.parser.Document()
	visited := make(map[int]bool)
	var placements []gltfPlacement

	var visit func(node, parent int) error
	visit = func(node, parent int) error {
		if node < 0 || node >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", node)
		}
		if visited[node] {
			return fmt.Errorf("node %d is reachable more than once", node)
		}
		visited[node] = true

		placements = append(placements, gltfPlacement{node: node, parent: parent})
		self := len(placements) - 1
		for _, child := range doc.Nodes[node].Children {
			if err := visit(child, self); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range roots {
		if err := visit(r, -1); err != nil {
			return nil, err
		}
	}
	return placements, nil
}

// meshModels returns one model per triangle primitive of a mesh, converting each only once.
func (imp *gltfImporterImpl) meshModels(meshIndex int) ([]model.Model, error) {
	doc := imp.parser.Document()
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	var models []model.Model
	for primIndex := range doc.Meshes[meshIndex].Primitives {
		prim := &doc.Meshes[meshIndex].Primitives[primIndex]
		if !gltfIsTriangles(prim) {
			common.Logger().Warn("skipping non-triangle primitive",
				"source", imp.name, "mesh", meshIndex, "primitive", primIndex, "mode", *prim.Mode)
			continue
		}

		key := primitiveKey{mesh: meshIndex, prim: primIndex}
		if m, ok := imp.models[key]; ok {
			models = append(models, m)
			continue
		}

		mesh, err := imp.meshes.ExtractPrimitive(meshIndex, primIndex)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIndex, err)
		}
		mat, err := imp.material(prim.Material)
		if err != nil {
			return nil, err
		}

		m := model.NewModel(mesh, mat, model.WithName(mesh.Name()))
		imp.models[key] = m
		models = append(models, m)
	}
	return models, nil
}

// material returns the converted material for an index, or the shared default material.
func (imp *gltfImporterImpl) material(index *int) (material.Material, error) {
	if index == nil {
		if imp.defaultMaterial == nil {
			imp.defaultMaterial = material.NewMaterial(
				material.WithName("default"),
				material.WithShaderKey(imp.shaderKey),
			)
		}
		return imp.defaultMaterial, nil
	}

	if mat, ok := imp.materialCache[*index]; ok {
		return mat, nil
	}
	mat, err := imp.materials.ExtractMaterial(*index)
	if err != nil {
		return nil, err
	}
	imp.materialCache[*index] = mat
	return mat, nil
}

// gltfNodeMatrix returns a node's local matrix from either its matrix or its TRS properties.
// glTF matrices are column-major like common.Mat4.
func gltfNodeMatrix(node *gltfNode) common.Mat4 {
	if node.Matrix != nil {
		return common.Mat4(*node.Matrix)
	}

	t := [3]float32{0, 0, 0}
	r := [4]float32{0, 0, 0, 1}
	s := [3]float32{1, 1, 1}
	if node.Translation != nil {
		t = *node.Translation
	}
	if node.Rotation != nil {
		r = *node.Rotation
	}
	if node.Scale != nil {
		s = *node.Scale
	}
	return common.ComposeTRS(t, r, s)
}
