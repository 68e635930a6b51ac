package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = float32(1e-5)

func TestMulIdentity(t *testing.T) {
	m := TranslationMatrix(1, 2, 3)
	assert.Equal(t, m, MulMat4(IdentityMatrix(), m))
	assert.Equal(t, m, MulMat4(m, IdentityMatrix()))
}

func TestMul4Aliasing(t *testing.T) {
	a := TranslationMatrix(1, 0, 0)
	b := TranslationMatrix(0, 2, 0)
	want := MulMat4(a, b)
	Mul4(a[:], a[:], b[:])
	assert.Equal(t, want, a)
}

func TestRotationMatrix(t *testing.T) {
	r := RotationMatrix(math32.Pi/2, 0, 0, 1)
	p := TransformPoint(r, 1, 0, 0)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 1, p[1], 1e-6)

	assert.Equal(t, IdentityMatrix(), RotationMatrix(1, 0, 0, 0))
}

func TestTranslateThenRotateComposition(t *testing.T) {
	// child translated by (1,0,0) under a parent rotated 90 degrees about z ends at (0,1,0)
	world := MulMat4(RotationMatrix(math32.Pi/2, 0, 0, 1), TranslationMatrix(1, 0, 0))
	p := TransformPoint(world, 0, 0, 0)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 1, p[1], 1e-6)
	assert.InDelta(t, 0, p[2], 1e-6)
}

func TestInvert4(t *testing.T) {
	m := MulMat4(TranslationMatrix(3, -2, 5), RotationMatrix(0.7, 1, 1, 0))
	var inv Mat4
	require.True(t, Invert4(inv[:], m[:]))
	assert.True(t, ApproxEqualMat4(IdentityMatrix(), MulMat4(m, inv), tol))

	var singular Mat4
	out := IdentityMatrix()
	assert.False(t, Invert4(out[:], singular[:]))
	assert.Equal(t, IdentityMatrix(), out, "singular input leaves out untouched")
}

func TestPerspectiveDepthRange(t *testing.T) {
	var p Mat4
	Perspective(p[:], math32.Pi/3, 16.0/9.0, 0.01, 100)

	near := TransformPoint(p, 0, 0, -0.01)
	far := TransformPoint(p, 0, 0, -100)
	assert.InDelta(t, 0, near[2]/near[3], 1e-4)
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	var v Mat4
	LookAt(v[:], 0, 0, 10, 0, 0, 0, 0, 1, 0)
	eye := TransformPoint(v, 0, 0, 10)
	assert.InDelta(t, 0, eye[2], 1e-5)
	target := TransformPoint(v, 0, 0, 0)
	assert.InDelta(t, -10, target[2], 1e-5)
}

func TestComposeTRS(t *testing.T) {
	m := ComposeTRS([3]float32{1, 2, 3}, [4]float32{0, 0, 0, 1}, [3]float32{2, 2, 2})
	p := TransformPoint(m, 1, 1, 1)
	assert.Equal(t, [4]float32{3, 4, 5, 1}, p)
}

func TestAlignSize(t *testing.T) {
	assert.Equal(t, uint64(256), AlignSize(128, 256))
	assert.Equal(t, uint64(256), AlignSize(256, 256))
	assert.Equal(t, uint64(512), AlignSize(257, 256))
	assert.Equal(t, uint64(100), AlignSize(100, 1))
	assert.Equal(t, uint64(100), AlignSize(100, 0))
	assert.Equal(t, uint32(80), DivCeil(1280, 16))
	assert.Equal(t, uint32(45), DivCeil(720, 16))
	assert.Equal(t, uint32(1), DivCeil(1, 16))
}

func TestVertexLayout(t *testing.T) {
	require.NoError(t, PositionNormalUVLayout.Validate())
	assert.Equal(t, "stride=32;0:f32x3@0;1:f32x3@12;2:f32x2@24", PositionNormalUVLayout.Key())

	bad := VertexLayout{Stride: 16, Attributes: []VertexAttribute{{Location: 0, Format: VertexFormatFloat32x4, Offset: 4}}}
	assert.Error(t, bad.Validate())
	assert.Error(t, VertexLayout{}.Validate())
}
