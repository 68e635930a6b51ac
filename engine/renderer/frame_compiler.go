package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// DrawDescriptor is everything needed to draw one object. Descriptors are compiled once per
// scene and replayed every frame; only the uniform data behind UniformOffset changes.
type DrawDescriptor struct {
	Object        scene.ObjectID
	Transform     scene.TransformID
	Batch         gpu.Batch
	Pipeline      gpu.Pipeline
	DescriptorSet gpu.DescriptorSet
	// UniformOffset is the transform's block offset within a uniform stream region.
	UniformOffset uint32
	IndexCount    uint32
}

// CompileFrame resolves one DrawDescriptor per object of s, in object iteration order.
//
// Objects whose mesh, material or transform the cache or stream do not know are caller bugs
// and panic.
//
// Parameters:
//   - s: the scene the cache and stream were built from
//   - cache: the scene's resource cache
//   - stream: the scene's uniform stream
//
// Returns:
//   - []DrawDescriptor: the draw list
func CompileFrame(s scene.Scene, cache ResourceCache, stream UniformStream) []DrawDescriptor {
	objects := s.Objects()
	draws := make([]DrawDescriptor, 0, len(objects))
	for _, o := range objects {
		t := s.ObjectTransform(o)
		if !s.HasTransform(t) {
			panic(fmt.Sprintf("frame compiler: object %d references unknown transform %d", o, t))
		}
		m := s.ObjectModel(o)
		mesh := m.Mesh()
		batch := cache.Batch(mesh)
		draws = append(draws, DrawDescriptor{
			Object:        o,
			Transform:     t,
			Batch:         batch,
			Pipeline:      cache.Pipeline(mesh.VertexLayout()),
			DescriptorSet: cache.DescriptorSet(m.Material()),
			UniformOffset: stream.Offset(t),
			IndexCount:    batch.IndexCount(),
		})
	}

	common.Logger().Info("frame compiled", "draws", len(draws))
	return draws
}
