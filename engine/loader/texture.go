package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureFlags control how an image is turned into texture staging data.
type TextureFlags uint32

const (
	// TextureGenerateMipmaps builds the full mip chain down to 1x1.
	TextureGenerateMipmaps TextureFlags = 1 << iota
)

// ImportTexture reads and decodes an image file into RGBA8 texture staging data.
// PNG, JPEG, BMP, TIFF, WebP and TGA are supported.
//
// Parameters:
//   - path: the image file
//   - flags: TextureGenerateMipmaps to build the mip chain
//
// Returns:
//   - common.TextureStagingData: base level plus any generated mip levels
//   - error: ErrUnsupportedFormat for unknown content, or the read/decode error
func ImportTexture(path string, flags TextureFlags) (common.TextureStagingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to read texture: %w", err)
	}
	return DecodeTexture(path, "", data, flags)
}

// DecodeTexture decodes encoded image bytes into RGBA8 texture staging data.
//
// Parameters:
//   - name: used in errors and to recognize TGA by extension
//   - mime: an optional MIME type hint, as given by glTF images
//   - data: the encoded image
//   - flags: TextureGenerateMipmaps to build the mip chain
//
// Returns:
//   - common.TextureStagingData: base level plus any generated mip levels
//   - error: ErrUnsupportedFormat for unknown content, or the decode error
func DecodeTexture(name, mime string, data []byte, flags TextureFlags) (common.TextureStagingData, error) {
	format, err := detectImage(name, mime, data)
	if err != nil {
		return common.TextureStagingData{}, err
	}

	var img image.Image
	if format == "tga" {
		img, err = tga.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to decode %s texture %s: %w", format, name, err)
	}

	base := toNRGBA(img)
	if base.Rect.Dx() == 0 || base.Rect.Dy() == 0 {
		return common.TextureStagingData{}, fmt.Errorf("texture %s is empty", name)
	}

	levels := []*image.NRGBA{base}
	if flags&TextureGenerateMipmaps != 0 {
		levels = mipChain(base)
	}

	staging := common.TextureStagingData{Levels: make([]common.TextureLevel, len(levels))}
	for i, l := range levels {
		staging.Levels[i] = common.TextureLevel{
			Pixels: l.Pix,
			Width:  uint32(l.Rect.Dx()),
			Height: uint32(l.Rect.Dy()),
		}
	}
	return staging, nil
}

// MipLevelCount returns the number of levels in a full mip chain for the given size.
func MipLevelCount(width, height int) int {
	n := 1
	for width > 1 || height > 1 {
		width, height = max(width/2, 1), max(height/2, 1)
		n++
	}
	return n
}

// toNRGBA converts img into a tightly packed, zero-origin, non-premultiplied RGBA image.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// mipChain halves base repeatedly with bilinear filtering until both sides are 1.
func mipChain(base *image.NRGBA) []*image.NRGBA {
	levels := make([]*image.NRGBA, 0, MipLevelCount(base.Rect.Dx(), base.Rect.Dy()))
	levels = append(levels, base)
	src := base
	for src.Rect.Dx() > 1 || src.Rect.Dy() > 1 {
		w, h := max(src.Rect.Dx()/2, 1), max(src.Rect.Dy()/2, 1)
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		levels = append(levels, dst)
		src = dst
	}
	return levels
}
