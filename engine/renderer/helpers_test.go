package renderer_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu/mock_gpu"
	"github.com/Carmen-Shannon/excess/engine/scene"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

// allKinds lists every object kind the mock context counts.
var allKinds = []mock_gpu.Kind{
	mock_gpu.KindBatch,
	mock_gpu.KindUniformBuffer,
	mock_gpu.KindTexture,
	mock_gpu.KindImage,
	mock_gpu.KindSampler,
	mock_gpu.KindShaderProgram,
	mock_gpu.KindPipeline,
	mock_gpu.KindComputePipeline,
	mock_gpu.KindDescriptorSet,
	mock_gpu.KindFence,
	mock_gpu.KindSemaphore,
}

func requireNothingLive(t *testing.T, ctx *mock_gpu.Context) {
	t.Helper()
	for _, k := range allKinds {
		require.Zero(t, ctx.Live(k), "live %s objects", k)
	}
}

// readMat4 decodes a column-major float32 matrix from b.
func readMat4(b []byte) common.Mat4 {
	var m common.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

// positionOnlyMesh builds a one-triangle mesh with a position-only layout.
func positionOnlyMesh(t *testing.T, name string) model.Mesh {
	t.Helper()
	layout := common.VertexLayout{
		Stride:     12,
		Attributes: []common.VertexAttribute{{Location: 0, Format: common.VertexFormatFloat32x3}},
	}
	verts := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	m, err := model.NewMesh(
		model.WithMeshName(name),
		model.WithVertexData(common.SliceToBytes(verts), layout),
		model.WithIndices([]uint32{0, 1, 2}),
	)
	require.NoError(t, err)
	return m
}

// twoObjectScene is the scene of the demo: one shared model, t1 at the root and t2 its child.
func twoObjectScene(m model.Model) (scene.Scene, scene.TransformID, scene.TransformID) {
	s := scene.NewScene(scene.WithName("demo"))
	t1 := s.CreateMatrixTransform(scene.NoParent, common.RotationMatrix(0.4, 0, 0, 1))
	t2 := s.CreateMatrixTransform(t1, common.TranslationMatrix(1, 1, 1))
	s.CreateObject(m, t1)
	s.CreateObject(m, t2)
	return s, t1, t2
}
