package main

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// perlin is seeded 3D gradient noise. Values lie roughly in [-1, 1].
type perlin struct {
	perm [512]uint8
}

func newPerlin(seed uint64) *perlin {
	p := &perlin{}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i, v := range r.Perm(256) {
		p.perm[i] = uint8(v)
		p.perm[i+256] = uint8(v)
	}
	return p
}

func fade(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

func grad(hash uint8, x, y, z float32) float32 {
	h := hash & 15
	u := y
	if h < 8 {
		u = x
	}
	var v float32
	switch {
	case h < 4:
		v = y
	case h == 12 || h == 14:
		v = x
	default:
		v = z
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

func (p *perlin) noise(x, y, z float32) float32 {
	fx, fy, fz := math32.Floor(x), math32.Floor(y), math32.Floor(z)
	xi, yi, zi := int(fx)&255, int(fy)&255, int(fz)&255
	x, y, z = x-fx, y-fy, z-fz
	u, v, w := fade(x), fade(y), fade(z)

	pm := &p.perm
	a := int(pm[xi]) + yi
	aa, ab := int(pm[a])+zi, int(pm[a+1])+zi
	b := int(pm[xi+1]) + yi
	ba, bb := int(pm[b])+zi, int(pm[b+1])+zi

	return lerp(
		lerp(
			lerp(grad(pm[aa], x, y, z), grad(pm[ba], x-1, y, z), u),
			lerp(grad(pm[ab], x, y-1, z), grad(pm[bb], x-1, y-1, z), u),
			v),
		lerp(
			lerp(grad(pm[aa+1], x, y, z-1), grad(pm[ba+1], x-1, y, z-1), u),
			lerp(grad(pm[ab+1], x, y-1, z-1), grad(pm[bb+1], x-1, y-1, z-1), u),
			v),
		w)
}

// fractal sums octaves of perlin noise, doubling the frequency and halving the amplitude each
// octave. Every octave has its own permutation. The sum is scaled back into the range of a
// single octave.
type fractal struct {
	octaves   []*perlin
	frequency float32
	bounding  float32
}

func newFractal(seed uint64, octaves int, frequency float32) *fractal {
	f := &fractal{frequency: frequency}
	amp, total := float32(1), float32(0)
	for i := 0; i < octaves; i++ {
		f.octaves = append(f.octaves, newPerlin(seed+uint64(i)))
		total += amp
		amp *= 0.5
	}
	f.bounding = 1 / total
	return f
}

func (f *fractal) at(x, y, z float32) float32 {
	x, y, z = x*f.frequency, y*f.frequency, z*f.frequency
	sum, amp := float32(0), float32(1)
	for _, o := range f.octaves {
		sum += o.noise(x, y, z) * amp
		x, y, z = x*2, y*2, z*2
		amp *= 0.5
	}
	return sum * f.bounding
}
