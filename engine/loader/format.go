package loader

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Model container types that filetype does not know about.
var (
	glbType  = filetype.NewType("glb", "model/gltf-binary")
	gltfType = filetype.NewType("gltf", "model/gltf+json")
)

func init() {
	filetype.AddMatcher(glbType, func(buf []byte) bool {
		return len(buf) >= 4 && string(buf[:4]) == "glTF"
	})
	filetype.AddMatcher(gltfType, func(buf []byte) bool {
		trimmed := bytes.TrimLeft(buf, " \t\r\n\ufeff")
		return len(trimmed) > 0 && trimmed[0] == '{'
	})
}

// imageExtensions maps the filetype extensions of decodable images to the names image.Decode registers.
var imageExtensions = map[string]string{
	"png":  "png",
	"jpg":  "jpeg",
	"bmp":  "bmp",
	"tif":  "tiff",
	"webp": "webp",
}

// sniff identifies data by its magic bytes.
func sniff(data []byte) types.Type {
	kind, err := filetype.Match(data)
	if err != nil {
		return filetype.Unknown
	}
	return kind
}

// detectModel reports whether data is a binary GLB container.
// The extension of name is only used when the content is not recognized.
//
// Returns:
//   - bool: true for GLB, false for glTF JSON
//   - error: ErrUnsupportedFormat when data is neither
func detectModel(name string, data []byte) (bool, error) {
	switch sniff(data) {
	case glbType:
		return true, nil
	case gltfType:
		return false, nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	return false, fmt.Errorf("%s (%q): %w", name, ext, ErrUnsupportedFormat)
}

// detectImage returns the image format name of data. TGA has no magic bytes,
// so it is recognized by the ".tga" extension of name or by the "image/x-tga" MIME type.
func detectImage(name, mime string, data []byte) (string, error) {
	kind := sniff(data)
	if format, ok := imageExtensions[kind.Extension]; ok {
		return format, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".tga") || strings.EqualFold(mime, "image/x-tga") {
		return "tga", nil
	}
	if kind != filetype.Unknown {
		return "", fmt.Errorf("%s is %s: %w", name, kind.MIME.Value, ErrUnsupportedFormat)
	}
	return "", fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
}
