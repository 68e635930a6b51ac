package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// ErrUnsupportedFormat is returned for model or image data the loader cannot identify or decode.
var ErrUnsupportedFormat = errors.New("unsupported format")

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.RWMutex

	parent       scene.TransformID
	sceneIndex   int
	shaderKey    string
	textureFlags TextureFlags

	importerCache map[string]gltfImporter
	textureCache  map[string]*common.TextureStagingData
}

// Loader imports glTF 2.0 scenes (.gltf / .glb) into a scene graph and decodes standalone textures.
// Parsed documents and decoded textures are cached by name, so importing the same file twice
// shares its models and materials between both copies.
type Loader interface {
	// ImportScene reads a glTF or GLB file and adds its default scene to s.
	// Relative buffer and image URIs resolve against the file's directory.
	//
	// Parameters:
	//   - path: the file path of the model
	//   - s: the scene to populate
	//
	// Returns:
	//   - *ImportResult: the created transforms and objects
	//   - error: ErrUnsupportedFormat for unrecognized content, or the read/parse/convert error
	ImportScene(path string, s scene.Scene) (*ImportResult, error)

	// ImportSceneData adds a glTF or GLB document held in memory to s and caches it by name.
	// External URIs are rejected; buffers and images must be embedded.
	//
	// Parameters:
	//   - name: the cache key, also used for format detection and errors
	//   - data: the document bytes
	//   - s: the scene to populate
	//
	// Returns:
	//   - *ImportResult: the created transforms and objects
	//   - error: ErrUnsupportedFormat for unrecognized content, or the parse/convert error
	ImportSceneData(name string, data []byte, s scene.Scene) (*ImportResult, error)

	// Texture imports an image file with the loader's texture flags and caches the result by path.
	//
	// Parameters:
	//   - path: the image file
	//
	// Returns:
	//   - *common.TextureStagingData: the cached staging data
	//   - error: ErrUnsupportedFormat for unrecognized content, or the read/decode error
	Texture(path string) (*common.TextureStagingData, error)

	// Textures returns a copy of the texture cache keyed by path.
	Textures() map[string]*common.TextureStagingData

	// Forget drops a cached document or texture so the next import reads it again.
	Forget(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the provided options applied.
// By default scenes import at the root, materials use the default shader key and textures
// are imported with TextureGenerateMipmaps.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            &sync.RWMutex{},
		parent:        scene.NoParent,
		sceneIndex:    -1,
		textureFlags:  TextureGenerateMipmaps,
		importerCache: make(map[string]gltfImporter),
		textureCache:  make(map[string]*common.TextureStagingData),
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) ImportScene(path string, s scene.Scene) (*ImportResult, error) {
	imp, err := l.importer(path, func() ([]byte, string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, filepath.Dir(path), nil
	})
	if err != nil {
		return nil, err
	}
	return imp.Instantiate(s, l.parent, l.sceneIndex)
}

func (l *loader) ImportSceneData(name string, data []byte, s scene.Scene) (*ImportResult, error) {
	imp, err := l.importer(name, func() ([]byte, string, error) {
		return data, "", nil
	})
	if err != nil {
		return nil, err
	}
	return imp.Instantiate(s, l.parent, l.sceneIndex)
}

// importer returns the cached importer for name, parsing the source on a miss.
func (l *loader) importer(name string, read func() ([]byte, string, error)) (gltfImporter, error) {
	l.mu.RLock()
	if cached, ok := l.importerCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, baseDir, err := read()
	if err != nil {
		return nil, err
	}
	imp, err := newGLTFImporter(name, data, baseDir, l.shaderKey, l.textureFlags)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.importerCache[name]; ok {
		return cached, nil
	}
	l.importerCache[name] = imp
	return imp, nil
}

func (l *loader) Texture(path string) (*common.TextureStagingData, error) {
	l.mu.RLock()
	if cached, ok := l.textureCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	staging, err := ImportTexture(path, l.textureFlags)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.textureCache[path]; ok {
		return cached, nil
	}
	l.textureCache[path] = &staging
	common.Logger().Info("texture imported",
		"path", path,
		"width", staging.Width(),
		"height", staging.Height(),
		"levels", len(staging.Levels),
	)
	return &staging, nil
}

func (l *loader) Textures() map[string]*common.TextureStagingData {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]*common.TextureStagingData, len(l.textureCache))
	for k, v := range l.textureCache {
		out[k] = v
	}
	return out
}

func (l *loader) Forget(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.importerCache, name)
	delete(l.textureCache, name)
}
