package loader_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/excess/engine/loader"
	"github.com/HugoSmits86/nativewebp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// pixel returns the RGBA8 value at (x, y) of a tightly packed level.
func pixel(pix []byte, width uint32, x, y int) [4]byte {
	off := (y*int(width) + x) * 4
	return [4]byte{pix[off], pix[off+1], pix[off+2], pix[off+3]}
}

func TestDecodeTextureLosslessFormats(t *testing.T) {
	src := checkerImage(4, 2)

	encoders := map[string]func(*bytes.Buffer) error{
		"a.png": func(b *bytes.Buffer) error { b.Write(encodePNG(t, src)); return nil },
		"a.bmp": func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
		"a.tif": func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) },
		"a.webp": func(b *bytes.Buffer) error {
			return nativewebp.Encode(b, src, nil)
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			tex, err := loader.DecodeTexture(name, "", buf.Bytes(), 0)
			require.NoError(t, err)
			require.Len(t, tex.Levels, 1)
			assert.Equal(t, uint32(4), tex.Width())
			assert.Equal(t, uint32(2), tex.Height())
			for y := 0; y < 2; y++ {
				for x := 0; x < 4; x++ {
					c := src.NRGBAAt(x, y)
					assert.Equal(t, [4]byte{c.R, c.G, c.B, c.A}, pixel(tex.Levels[0].Pixels, 4, x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestDecodeTextureJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	tex, err := loader.DecodeTexture("a.jpg", "", buf.Bytes(), 0)
	require.NoError(t, err)
	p := pixel(tex.Levels[0].Pixels, 8, 3, 3)
	assert.InDelta(t, 200, int(p[0]), 3)
	assert.Equal(t, byte(255), p[3])
}

// tgaImage builds an uncompressed, top-left origin, 24-bit TGA with a version 2 footer.
func tgaImage(width, height int, bgr []byte) []byte {
	header := make([]byte, 18)
	header[2] = 2 // uncompressed true-color
	header[12], header[13] = byte(width), byte(width>>8)
	header[14], header[15] = byte(height), byte(height>>8)
	header[16] = 24
	header[17] = 0x20
	out := append(header, bgr...)
	out = append(out, make([]byte, 8)...)
	return append(out, []byte("TRUEVISION-XFILE.\x00")...)
}

func TestDecodeTextureTGA(t *testing.T) {
	data := tgaImage(2, 1, []byte{
		0x10, 0x20, 0x30, // b g r
		0x40, 0x50, 0x60,
	})

	tex, err := loader.DecodeTexture("a.tga", "", data, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width())
	assert.Equal(t, [4]byte{0x30, 0x20, 0x10, 0xff}, pixel(tex.Levels[0].Pixels, 2, 0, 0))
	assert.Equal(t, [4]byte{0x60, 0x50, 0x40, 0xff}, pixel(tex.Levels[0].Pixels, 2, 1, 0))

	// a glTF image has no file name; the MIME type selects the decoder
	_, err = loader.DecodeTexture("image0", "image/x-tga", data, 0)
	assert.NoError(t, err)
}

func TestDecodeTextureMipChain(t *testing.T) {
	solid := image.NewNRGBA(image.Rect(0, 0, 8, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 8; x++ {
			solid.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	tex, err := loader.DecodeTexture("a.png", "", encodePNG(t, solid), loader.TextureGenerateMipmaps)
	require.NoError(t, err)
	require.Len(t, tex.Levels, loader.MipLevelCount(8, 2))

	sizes := [][2]uint32{{8, 2}, {4, 1}, {2, 1}, {1, 1}}
	for i, l := range tex.Levels {
		assert.Equal(t, sizes[i], [2]uint32{l.Width, l.Height})
		assert.Len(t, l.Pixels, int(l.Width*l.Height*4))
		// bilinear filtering of a solid image keeps its color
		got := pixel(l.Pixels, l.Width, 0, 0)
		for c, want := range [4]byte{10, 20, 30, 255} {
			assert.InDelta(t, int(want), int(got[c]), 1)
		}
	}
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, 1, loader.MipLevelCount(1, 1))
	assert.Equal(t, 3, loader.MipLevelCount(4, 4))
	assert.Equal(t, 4, loader.MipLevelCount(8, 2))
	assert.Equal(t, 11, loader.MipLevelCount(1024, 3))
}

func TestDecodeTextureRejectsUnknownData(t *testing.T) {
	_, err := loader.DecodeTexture("a.bin", "", []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0)
	assert.ErrorIs(t, err, loader.ErrUnsupportedFormat)

	// recognized by magic but not an image format the loader decodes
	_, err = loader.DecodeTexture("a.zip", "", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"), 0)
	assert.ErrorIs(t, err, loader.ErrUnsupportedFormat)

	// a decoder is selected but the data is truncated
	_, err = loader.DecodeTexture("a.png", "", []byte("\x89PNG\r\n\x1a\n"), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, loader.ErrUnsupportedFormat)
}

func TestImportTextureFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "albedo.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, checkerImage(4, 4)), 0o644))

	tex, err := loader.ImportTexture(path, loader.TextureGenerateMipmaps)
	require.NoError(t, err)
	assert.Len(t, tex.Levels, 3)

	_, err = loader.ImportTexture(filepath.Join(t.TempDir(), "missing.png"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
