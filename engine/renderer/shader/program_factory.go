package shader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
)

// ProgramFactory turns a material into the shader program that draws it.
type ProgramFactory func(m material.Material) (gpu.ShaderProgram, error)

type programFactory struct {
	mu      *sync.Mutex
	ctx     gpu.GraphicsContext
	shaders map[string]Shader
}

// NewProgramFactory creates the default ProgramFactory. It resolves a material's shader key
// against the shaders registered with WithShader, falling back to the builtin shaders, and
// creates a new program on ctx for every call.
//
// Parameters:
//   - ctx: the graphics context programs are created on
//   - options: functional options registering extra shaders
//
// Returns:
//   - ProgramFactory: the factory function
func NewProgramFactory(ctx gpu.GraphicsContext, options ...ProgramFactoryBuilderOption) ProgramFactory {
	f := &programFactory{
		mu:      &sync.Mutex{},
		ctx:     ctx,
		shaders: make(map[string]Shader),
	}
	for _, opt := range options {
		opt(f)
	}
	return f.create
}

func (f *programFactory) lookup(key string) (Shader, error) {
	f.mu.Lock()
	s, ok := f.shaders[key]
	f.mu.Unlock()
	if ok {
		return s, nil
	}
	return Builtin(key)
}

func (f *programFactory) create(m material.Material) (gpu.ShaderProgram, error) {
	s, err := f.lookup(m.ShaderKey())
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", m.Name(), err)
	}
	if _, ok := s.EntryPoint(gpu.ShaderStageVertex); !ok {
		return nil, fmt.Errorf("material %q: shader %q has no vertex stage", m.Name(), s.Key())
	}

	desc := s.Descriptor()
	desc.Label = s.Key() + "/" + m.Name()
	program, err := f.ctx.CreateShaderProgram(desc)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", m.Name(), err)
	}
	common.Logger().Debug("shader program created", "material", m.Name(), "shader", s.Key(), "bindings", len(desc.Layout.Entries))
	return program, nil
}

// ProgramFactoryBuilderOption configures the default ProgramFactory.
type ProgramFactoryBuilderOption func(*programFactory)

// WithShader registers s under its key, shadowing a builtin shader of the same key.
//
// Parameters:
//   - s: the shader to register
//
// Returns:
//   - ProgramFactoryBuilderOption: a function that registers the shader
func WithShader(s Shader) ProgramFactoryBuilderOption {
	return func(f *programFactory) {
		f.shaders[s.Key()] = s
	}
}
