package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/excess/common"
	"github.com/HugoSmits86/nativewebp"
	"github.com/chewxy/math32"
)

// channelSeeds seed the red, green and blue channels.
var channelSeeds = [3]uint64{1337, 1338, 1339}

const defaultOctaves = 10

// volume is a cubic RGBA32F texture. Texels are stored x fastest, then y, then z.
type volume struct {
	size   int
	texels []float32
}

// generator fills volumes with tileable fractal noise, one fractal per color channel.
type generator struct {
	size     int
	channels [3]*fractal
}

func newGenerator(size, octaves int) *generator {
	g := &generator{size: size}
	for i, seed := range channelSeeds {
		g.channels[i] = newFractal(seed, octaves, 4/float32(size))
	}
	return g
}

// sample returns channel ch at the integer coordinate (x, y, z). Each axis blends the noise at
// the coordinate with the noise one period further along, weighted so the result wraps around
// with period size.
func (g *generator) sample(ch, x, y, z int) float32 {
	n := g.channels[ch]
	s := float32(g.size)
	fx, fy, fz := float32(x), float32(y), float32(z)
	xw, yw, zw := fx/s, fy/s, fz/s

	a := n.at(fx, fy, fz)
	b := n.at(fx+s, fy, fz)
	c := n.at(fx, fy+s, fz)
	d := n.at(fx+s, fy+s, fz)
	e := n.at(fx, fy, fz+s)
	f := n.at(fx+s, fy, fz+s)
	gg := n.at(fx, fy+s, fz+s)
	h := n.at(fx+s, fy+s, fz+s)

	h1 := a*xw + b*(1-xw)
	h2 := c*xw + d*(1-xw)
	h3 := e*xw + f*(1-xw)
	h4 := gg*xw + h*(1-xw)

	v1 := h1*yw + h2*(1-yw)
	v2 := h3*yw + h4*(1-yw)
	return v1*zw + v2*(1-zw)
}

// generate computes the whole volume. Slices along z are spread over a worker pool when
// workers is greater than one.
func (g *generator) generate(workers int) *volume {
	v := &volume{size: g.size, texels: make([]float32, 4*g.size*g.size*g.size)}
	if workers <= 1 {
		for z := 0; z < g.size; z++ {
			g.fillSlice(v, z)
		}
		return v
	}

	pool := worker.NewDynamicWorkerPool(workers, g.size, 1*time.Second)
	var wg sync.WaitGroup
	for z := 0; z < g.size; z++ {
		wg.Add(1)
		slice := z
		pool.SubmitTask(worker.Task{
			ID: slice,
			Do: func() (any, error) {
				defer wg.Done()
				g.fillSlice(v, slice)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return v
}

func (g *generator) fillSlice(v *volume, z int) {
	for y := 0; y < g.size; y++ {
		row := v.texels[4*(z*g.size*g.size+y*g.size):]
		for x := 0; x < g.size; x++ {
			for ch := 0; ch < 3; ch++ {
				row[x*4+ch] = g.sample(ch, x, y, z)
			}
			row[x*4+3] = 0
		}
	}
}

// texel returns the RGBA value at (x, y, z).
func (v *volume) texel(x, y, z int) [4]float32 {
	i := 4 * (z*v.size*v.size + y*v.size + x)
	return [4]float32(v.texels[i : i+4])
}

// writeRaw writes the texels as tightly packed native-endian float32 values, the layout a GPU
// upload of an RGBA32F 3D texture expects.
func (v *volume) writeRaw(w io.Writer) error {
	_, err := w.Write(common.SliceToBytes(v.texels))
	return err
}

// slice renders the z plane as an opaque image, mapping [-1, 1] onto [0, 255].
func (v *volume) slice(z int) (*image.NRGBA, error) {
	if z < 0 || z >= v.size {
		return nil, fmt.Errorf("slice %d outside volume of depth %d", z, v.size)
	}
	img := image.NewNRGBA(image.Rect(0, 0, v.size, v.size))
	for y := 0; y < v.size; y++ {
		for x := 0; x < v.size; x++ {
			t := v.texel(x, y, z)
			img.SetNRGBA(x, y, color.NRGBA{R: toByte(t[0]), G: toByte(t[1]), B: toByte(t[2]), A: 255})
		}
	}
	return img, nil
}

// writePreview encodes slice z as a lossless WebP image.
func (v *volume) writePreview(w io.Writer, z int) error {
	img, err := v.slice(z)
	if err != nil {
		return err
	}
	return nativewebp.Encode(w, img, nil)
}

func toByte(f float32) uint8 {
	return uint8(math32.Round(math32.Max(0, math32.Min(1, (f+1)/2)) * 255))
}

func defaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}
