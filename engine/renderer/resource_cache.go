package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/Carmen-Shannon/excess/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/excess/engine/renderer/shader"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

// resourceCache is the implementation of the ResourceCache interface.
type resourceCache struct {
	mu *sync.Mutex

	ctx     gpu.GraphicsContext
	factory shader.ProgramFactory
	stream  UniformStream

	state       pipeline.FixedFunctionState
	colorFormat wgpu.TextureFormat
	depthFormat wgpu.TextureFormat
	samplerDesc gpu.SamplerDescriptor

	batches   map[model.Mesh]gpu.Batch
	programs  map[material.Material]gpu.ShaderProgram
	pipelines map[string]gpu.Pipeline
	sets      map[material.Material]gpu.DescriptorSet

	// creation order, for teardown
	batchOrder    []model.Mesh
	materialOrder []material.Material
	pipelineOrder []string

	textures map[material.Material]gpu.Image
	params   map[material.Material]gpu.Buffer
	white    gpu.Image
	sampler  gpu.Sampler
}

// ResourceCache holds the deduplicated GPU objects a scene needs: one batch per distinct mesh,
// one shader program and descriptor set per distinct material, and one graphics pipeline per
// distinct vertex layout.
//
// Meshes and materials are keyed by identity, so two separately built meshes with identical
// vertices get two batches. Lookups of anything that was not part of the scene at construction
// panic.
type ResourceCache interface {
	// Batch returns the uploaded batch of mesh m.
	Batch(m model.Mesh) gpu.Batch

	// Program returns the shader program of material m.
	Program(m material.Material) gpu.ShaderProgram

	// DescriptorSet returns the set 0 bindings of material m: the uniform stream, the material
	// texture, the sampler and the material parameters.
	DescriptorSet(m material.Material) gpu.DescriptorSet

	// Pipeline returns the graphics pipeline for vertex layout l.
	Pipeline(l common.VertexLayout) gpu.Pipeline

	// BatchCount returns the number of distinct batches.
	BatchCount() int

	// ProgramCount returns the number of distinct shader programs.
	ProgramCount() int

	// PipelineCount returns the number of distinct pipelines.
	PipelineCount() int

	// Release frees every GPU object the cache created.
	Release()
}

// Ensure resourceCache implements ResourceCache interface.
var _ ResourceCache = &resourceCache{}

// NewResourceCache compiles every object of s into deduplicated GPU resources. Shader programs
// come from factory and are created before any pipeline; each layout's pipeline uses the program
// of the first object drawn with that layout.
//
// Any creation failure aborts the build, releases whatever was already created and returns the
// error; no partial cache is returned.
//
// Parameters:
//   - ctx: the graphics context resources are created on
//   - s: the scene to compile
//   - factory: creates the shader program of a material
//   - stream: the uniform stream bound at the dynamic uniform binding
//   - options: functional options to configure the cache
//
// Returns:
//   - ResourceCache: the populated cache
//   - error: the first creation error
func NewResourceCache(ctx gpu.GraphicsContext, s scene.Scene, factory shader.ProgramFactory, stream UniformStream, options ...ResourceCacheBuilderOption) (ResourceCache, error) {
	rc := &resourceCache{
		mu:          &sync.Mutex{},
		ctx:         ctx,
		factory:     factory,
		stream:      stream,
		state:       pipeline.DefaultFixedFunctionState(),
		colorFormat: ColorTargetFormat,
		depthFormat: DepthTargetFormat,
		samplerDesc: gpu.SamplerDescriptor{Label: "Material Sampler"},
		batches:     make(map[model.Mesh]gpu.Batch),
		programs:    make(map[material.Material]gpu.ShaderProgram),
		pipelines:   make(map[string]gpu.Pipeline),
		sets:        make(map[material.Material]gpu.DescriptorSet),
		textures:    make(map[material.Material]gpu.Image),
		params:      make(map[material.Material]gpu.Buffer),
	}
	for _, opt := range options {
		opt(rc)
	}

	if err := rc.build(s); err != nil {
		rc.Release()
		return nil, fmt.Errorf("resource cache: %w", err)
	}

	common.Logger().Info("resource cache built",
		"objects", s.ObjectCount(),
		"batches", len(rc.batches),
		"programs", len(rc.programs),
		"pipelines", len(rc.pipelines),
	)
	return rc, nil
}

func (rc *resourceCache) build(s scene.Scene) error {
	sampler, err := rc.ctx.CreateSampler(rc.samplerDesc)
	if err != nil {
		return err
	}
	rc.sampler = sampler

	objects := s.Objects()
	for _, o := range objects {
		m := s.ObjectModel(o)
		if err := rc.addBatch(m.Mesh()); err != nil {
			return err
		}
		if err := rc.addMaterial(m.Material()); err != nil {
			return err
		}
	}

	// Every program exists now; pipelines borrow their layout.
	for _, o := range objects {
		m := s.ObjectModel(o)
		if err := rc.addPipeline(m.Mesh().VertexLayout(), rc.programs[m.Material()]); err != nil {
			return err
		}
	}
	return nil
}

func (rc *resourceCache) addBatch(mesh model.Mesh) error {
	if _, ok := rc.batches[mesh]; ok {
		return nil
	}
	b, err := rc.ctx.CreateBatch(mesh.Name(), mesh.Vertices(), common.SliceToBytes(mesh.Indices()), mesh.IndexCount())
	if err != nil {
		return fmt.Errorf("mesh %q: %w", mesh.Name(), err)
	}
	rc.batches[mesh] = b
	rc.batchOrder = append(rc.batchOrder, mesh)
	return nil
}

func (rc *resourceCache) addMaterial(mat material.Material) error {
	if _, ok := rc.programs[mat]; ok {
		return nil
	}
	program, err := rc.factory(mat)
	if err != nil {
		return err
	}
	rc.programs[mat] = program
	rc.materialOrder = append(rc.materialOrder, mat)

	bindings, err := rc.materialBindings(mat, program.DescriptorSetLayout())
	if err != nil {
		return fmt.Errorf("material %q: %w", mat.Name(), err)
	}
	set, err := rc.ctx.CreateDescriptorSet(mat.Name()+" Descriptor Set", program, bindings)
	if err != nil {
		return fmt.Errorf("material %q: %w", mat.Name(), err)
	}
	rc.sets[mat] = set
	return nil
}

// materialBindings resolves each layout entry by its type: the dynamic uniform buffer is the
// uniform stream, the plain uniform buffer holds the material parameters.
func (rc *resourceCache) materialBindings(mat material.Material, layout gpu.DescriptorSetLayout) ([]gpu.DescriptorBinding, error) {
	bindings := make([]gpu.DescriptorBinding, 0, len(layout.Entries))
	for _, e := range layout.Entries {
		b := gpu.DescriptorBinding{Binding: e.Binding}
		switch e.Type {
		case gpu.BindingTypeDynamicUniformBuffer:
			b.Buffer = rc.stream.Buffer()
			b.Size = rc.stream.BlockSize()
		case gpu.BindingTypeUniformBuffer:
			buf, err := rc.materialParams(mat)
			if err != nil {
				return nil, err
			}
			b.Buffer = buf
			b.Size = buf.Size()
		case gpu.BindingTypeSampledImage:
			img, err := rc.materialTexture(mat)
			if err != nil {
				return nil, err
			}
			b.Image = img
		case gpu.BindingTypeSampler:
			b.Sampler = rc.sampler
		default:
			return nil, fmt.Errorf("binding %d: %v is not supported for materials", e.Binding, e.Type)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func (rc *resourceCache) materialParams(mat material.Material) (gpu.Buffer, error) {
	if buf, ok := rc.params[mat]; ok {
		return buf, nil
	}
	params := mat.Params()
	data := params.Marshal()
	buf, err := rc.ctx.CreateUniformBuffer(mat.Name()+" Params", uint64(len(data)))
	if err != nil {
		return nil, err
	}
	rc.params[mat] = buf

	dst, err := buf.Map(0, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	copy(dst, data)
	if err := buf.Unmap(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (rc *resourceCache) materialTexture(mat material.Material) (gpu.Image, error) {
	if img, ok := rc.textures[mat]; ok {
		return img, nil
	}
	tex := mat.Texture()
	if tex == nil {
		common.Logger().Debug("material has no texture, binding white", "material", mat.Name())
		return rc.whiteTexture()
	}
	img, err := rc.ctx.CreateTexture(mat.Name()+" Texture", *tex)
	if err != nil {
		return nil, err
	}
	rc.textures[mat] = img
	return img, nil
}

func (rc *resourceCache) whiteTexture() (gpu.Image, error) {
	if rc.white != nil {
		return rc.white, nil
	}
	img, err := rc.ctx.CreateTexture("White Texture", common.WhiteTexture())
	if err != nil {
		return nil, err
	}
	rc.white = img
	return img, nil
}

func (rc *resourceCache) addPipeline(layout common.VertexLayout, program gpu.ShaderProgram) error {
	key := layout.Key()
	if _, ok := rc.pipelines[key]; ok {
		return nil
	}
	p, err := rc.ctx.CreateGraphicsPipeline(program, layout, rc.state, rc.colorFormat, rc.depthFormat)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", key, err)
	}
	rc.pipelines[key] = p
	rc.pipelineOrder = append(rc.pipelineOrder, key)
	return nil
}

func (rc *resourceCache) Batch(m model.Mesh) gpu.Batch {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	b, ok := rc.batches[m]
	if !ok {
		panic(fmt.Sprintf("resource cache: mesh %q is not part of the compiled scene", m.Name()))
	}
	return b
}

func (rc *resourceCache) Program(m material.Material) gpu.ShaderProgram {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	p, ok := rc.programs[m]
	if !ok {
		panic(fmt.Sprintf("resource cache: material %q is not part of the compiled scene", m.Name()))
	}
	return p
}

func (rc *resourceCache) DescriptorSet(m material.Material) gpu.DescriptorSet {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	ds, ok := rc.sets[m]
	if !ok {
		panic(fmt.Sprintf("resource cache: material %q is not part of the compiled scene", m.Name()))
	}
	return ds
}

func (rc *resourceCache) Pipeline(l common.VertexLayout) gpu.Pipeline {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	p, ok := rc.pipelines[l.Key()]
	if !ok {
		panic(fmt.Sprintf("resource cache: no pipeline for vertex layout %s", l.Key()))
	}
	return p
}

func (rc *resourceCache) BatchCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.batches)
}

func (rc *resourceCache) ProgramCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.programs)
}

func (rc *resourceCache) PipelineCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pipelines)
}

// Release frees resources in reverse dependency order: descriptor sets and pipelines before the
// programs, images and buffers they reference.
func (rc *resourceCache) Release() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, key := range rc.pipelineOrder {
		rc.pipelines[key].Release()
	}
	for _, mat := range rc.materialOrder {
		if ds, ok := rc.sets[mat]; ok {
			ds.Release()
		}
	}
	for _, mat := range rc.materialOrder {
		rc.programs[mat].Release()
		if img, ok := rc.textures[mat]; ok {
			img.Release()
		}
		if buf, ok := rc.params[mat]; ok {
			buf.Release()
		}
	}
	if rc.white != nil {
		rc.white.Release()
	}
	if rc.sampler != nil {
		rc.sampler.Release()
	}
	for _, mesh := range rc.batchOrder {
		rc.batches[mesh].Release()
	}

	rc.batches = make(map[model.Mesh]gpu.Batch)
	rc.programs = make(map[material.Material]gpu.ShaderProgram)
	rc.pipelines = make(map[string]gpu.Pipeline)
	rc.sets = make(map[material.Material]gpu.DescriptorSet)
	rc.textures = make(map[material.Material]gpu.Image)
	rc.params = make(map[material.Material]gpu.Buffer)
	rc.batchOrder, rc.materialOrder, rc.pipelineOrder = nil, nil, nil
	rc.white, rc.sampler = nil, nil
}
