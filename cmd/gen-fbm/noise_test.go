package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerlinIsDeterministic(t *testing.T) {
	a, b, other := newPerlin(1337), newPerlin(1337), newPerlin(1338)

	differs := false
	for i := 0; i < 100; i++ {
		x, y, z := float32(i)*0.37, float32(i)*0.71, float32(i)*0.13
		assert.Equal(t, a.noise(x, y, z), b.noise(x, y, z))
		if a.noise(x, y, z) != other.noise(x, y, z) {
			differs = true
		}
	}
	assert.True(t, differs, "different seeds produced identical noise")
}

func TestPerlinVanishesOnLattice(t *testing.T) {
	p := newPerlin(7)
	for _, c := range [][3]float32{{0, 0, 0}, {1, 2, 3}, {-4, 5, 255}, {300, 0, 1}} {
		assert.Zero(t, p.noise(c[0], c[1], c[2]))
	}
}

func TestFractalStaysInRange(t *testing.T) {
	f := newFractal(1337, defaultOctaves, 4.0/64)
	require.Len(t, f.octaves, defaultOctaves)

	nonZero := 0
	for i := 0; i < 2000; i++ {
		v := f.at(float32(i%64)+0.5, float32(i/64)+0.25, float32(i%17))
		assert.LessOrEqual(t, v, float32(1))
		assert.GreaterOrEqual(t, v, float32(-1))
		if v != 0 {
			nonZero++
		}
	}
	assert.Positive(t, nonZero)
}

func TestSampleWrapsAround(t *testing.T) {
	const size = 8
	g := newGenerator(size, 3)

	for ch := 0; ch < 3; ch++ {
		for i := 0; i < size; i++ {
			j := (i * 3) % size
			assert.InDelta(t, g.sample(ch, 0, i, j), g.sample(ch, size, i, j), 1e-6)
			assert.InDelta(t, g.sample(ch, i, 0, j), g.sample(ch, i, size, j), 1e-6)
			assert.InDelta(t, g.sample(ch, i, j, 0), g.sample(ch, i, j, size), 1e-6)
		}
	}
}

func TestGenerateParallelMatchesSerial(t *testing.T) {
	g := newGenerator(8, 2)
	serial := g.generate(1)
	parallel := g.generate(4)

	require.Len(t, serial.texels, 4*8*8*8)
	assert.Equal(t, serial.texels, parallel.texels)

	for z := 0; z < 8; z++ {
		tx := serial.texel(3, 5, z)
		assert.Zero(t, tx[3])
		assert.Equal(t, g.sample(1, 3, 5, z), tx[1])
	}
}

func TestToByte(t *testing.T) {
	assert.Equal(t, uint8(0), toByte(-1))
	assert.Equal(t, uint8(0), toByte(-3))
	assert.Equal(t, uint8(128), toByte(0))
	assert.Equal(t, uint8(255), toByte(1))
	assert.Equal(t, uint8(255), toByte(2))
}
