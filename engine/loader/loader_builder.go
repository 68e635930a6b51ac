package loader

import (
	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithParent is an option builder that attaches imported root nodes under an existing transform.
//
// Parameters:
//   - parent: the transform to import under, or scene.NoParent for the scene root
//
// Returns:
//   - LoaderBuilderOption: a function that applies the parent option to a loader
func WithParent(parent scene.TransformID) LoaderBuilderOption {
	return func(l *loader) {
		l.parent = parent
	}
}

// WithSceneIndex selects which glTF scene of a document is imported. Pass -1 for the document's default.
func WithSceneIndex(index int) LoaderBuilderOption {
	return func(l *loader) {
		l.sceneIndex = index
	}
}

// WithShaderKey is an option builder that sets the shader key of every imported material.
//
// Parameters:
//   - key: the shader-program key, empty for the default
//
// Returns:
//   - LoaderBuilderOption: a function that applies the shader key option to a loader
func WithShaderKey(key string) LoaderBuilderOption {
	return func(l *loader) {
		l.shaderKey = key
	}
}

// WithTextureFlags replaces the flags used for standalone and material textures.
func WithTextureFlags(flags TextureFlags) LoaderBuilderOption {
	return func(l *loader) {
		l.textureFlags = flags
	}
}

// WithTexture is an option builder that pre-populates the texture cache.
//
// Parameters:
//   - key: the cache key for the texture
//   - tex: the staging data to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the texture option to a loader
func WithTexture(key string, tex *common.TextureStagingData) LoaderBuilderOption {
	return func(l *loader) {
		l.textureCache[key] = tex
	}
}
