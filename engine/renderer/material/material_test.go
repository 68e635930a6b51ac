package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/stretchr/testify/assert"
)

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial()
	assert.Equal(t, DefaultShaderKey, m.ShaderKey())
	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.BaseColor())
	assert.Nil(t, m.Texture())
	assert.Zero(t, m.Params().Flags&MaterialFlagTextured)
}

func TestMaterialOptions(t *testing.T) {
	tex := common.WhiteTexture()
	m := NewMaterial(
		WithName("logo"),
		WithShaderKey(""),
		WithBaseColor([4]float32{0.5, 0.25, 1, 1}),
		WithTexture(&tex),
	)
	assert.Equal(t, "logo", m.Name())
	assert.Equal(t, DefaultShaderKey, m.ShaderKey())
	assert.Same(t, &tex, m.Texture())
	assert.NotZero(t, m.Params().Flags&MaterialFlagTextured)
}

func TestParamsLayout(t *testing.T) {
	p := GPUMaterialParams{BaseColor: [4]float32{0.5, 0, 0, 1}, Flags: MaterialFlagTextured}
	b := p.Marshal()
	assert.Len(t, b, p.Size())
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(b[0:])))
	assert.Equal(t, MaterialFlagTextured, binary.LittleEndian.Uint32(b[16:]))
}

func TestMaterialsAreDistinctByIdentity(t *testing.T) {
	a, b := NewMaterial(), NewMaterial()
	set := map[Material]struct{}{a: {}, b: {}}
	assert.Len(t, set, 2)
}
