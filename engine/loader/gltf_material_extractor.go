package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser    gltfParser
	shaderKey string
	flags     TextureFlags

	// textures holds decoded images by glTF image index so materials sharing an image share its staging data.
	textures map[int]*common.TextureStagingData
}

// gltfMaterialExtractor converts glTF metallic-roughness materials into engine materials.
// Only the base color factor and base color texture are carried over.
type gltfMaterialExtractor interface {
	// ExtractMaterial converts a single material by index, decoding its base color texture if any.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - material.Material: the converted material
	//   - error: error if the texture cannot be resolved or decoded
	ExtractMaterial(materialIndex int) (material.Material, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//   - shaderKey: the shader program every extracted material renders with
//   - flags: texture import flags for base color images
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser, shaderKey string, flags TextureFlags) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{
		parser:    parser,
		shaderKey: shaderKey,
		flags:     flags,
		textures:  make(map[int]*common.TextureStagingData),
	}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (material.Material, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", materialIndex)
	}

	mat := &doc.Materials[materialIndex]
	name := mat.Name
	if name == "" {
		name = fmt.Sprintf("material%d", materialIndex)
	}

	options := []material.MaterialBuilderOption{
		material.WithName(name),
		material.WithShaderKey(e.shaderKey),
	}

	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			options = append(options, material.WithBaseColor(*pbr.BaseColorFactor))
		}
		if pbr.BaseColorTexture != nil {
			tex, err := e.loadTexture(pbr.BaseColorTexture.Index)
			if err != nil {
				return nil, fmt.Errorf("material %q: base color texture: %w", name, err)
			}
			if tex != nil {
				options = append(options, material.WithTexture(tex))
			}
		}
	}

	return material.NewMaterial(options...), nil
}

// loadTexture resolves a texture to its image and decodes it once per image.
// A texture without a source yields nil so the material falls back to the shared white texture.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int) (*common.TextureStagingData, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}

	src := doc.Textures[textureIndex].Source
	if src == nil {
		return nil, nil
	}
	if tex, ok := e.textures[*src]; ok {
		return tex, nil
	}

	data, name, err := e.parser.ReadImage(*src)
	if err != nil {
		return nil, err
	}
	staging, err := DecodeTexture(name, doc.Images[*src].MimeType, data, e.flags)
	if err != nil {
		return nil, err
	}

	e.textures[*src] = &staging
	return &staging, nil
}
