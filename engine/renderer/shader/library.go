package shader

import (
	_ "embed"
	"fmt"
	"sync"
)

// Keys of the shaders embedded in the engine.
const (
	// KeyMesh is the forward mesh shader every material uses unless it names another.
	KeyMesh = "mesh"

	// KeyPostProcess is the exposure and vignette compute shader.
	KeyPostProcess = "postprocess"
)

//go:embed assets/mesh.wgsl
var meshSource string

//go:embed assets/postprocess.wgsl
var postProcessSource string

var (
	builtinOnce    sync.Once
	builtinShaders map[string]Shader
	builtinErr     error
)

// Builtin returns one of the shaders embedded in the engine, parsed once per process.
//
// Parameters:
//   - key: KeyMesh or KeyPostProcess
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error for unknown keys
func Builtin(key string) (Shader, error) {
	builtinOnce.Do(func() {
		builtinShaders = make(map[string]Shader, 2)
		for k, src := range map[string]string{KeyMesh: meshSource, KeyPostProcess: postProcessSource} {
			s, err := NewShader(k, src)
			if err != nil {
				builtinErr = err
				return
			}
			builtinShaders[k] = s
		}
	})
	if builtinErr != nil {
		return nil, builtinErr
	}
	s, ok := builtinShaders[key]
	if !ok {
		return nil, fmt.Errorf("no builtin shader %q", key)
	}
	return s, nil
}
