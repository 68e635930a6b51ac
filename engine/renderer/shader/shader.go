package shader

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
)

// shader is the implementation of the Shader interface.
type shader struct {
	key          string
	source       string
	entryPoints  []gpu.EntryPoint
	layout       gpu.DescriptorSetLayout
	bindingNames map[string]uint32
	vertexInputs []common.VertexAttribute
	declarations []Annotation
}

// Shader is a pre-processed WGSL module and the interface reflected from it: entry points,
// descriptor set 0 and vertex inputs.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source.
	Source() string

	EntryPoints() []gpu.EntryPoint

	// EntryPoint returns the entry point of stage.
	//
	// Parameters:
	//   - stage: a single shader stage
	//
	// Returns:
	//   - gpu.EntryPoint: the entry point
	//   - bool: false if the shader has no entry point for stage
	EntryPoint(stage gpu.ShaderStage) (gpu.EntryPoint, bool)

	// Layout returns descriptor set 0 as declared by the source.
	Layout() gpu.DescriptorSetLayout

	// BindingFromVarName returns the binding index of the variable named varName.
	//
	// Parameters:
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - uint32: the binding index
	//   - bool: false if no binding has that name
	BindingFromVarName(varName string) (uint32, bool)

	// VertexInputs returns the vertex shader inputs with their locations and formats.
	// Compute shaders have none.
	VertexInputs() []common.VertexAttribute

	// AcceptsVertexLayout checks that layout feeds every vertex input with a matching format.
	//
	// Parameters:
	//   - layout: a mesh vertex layout
	//
	// Returns:
	//   - error: a description of the first unfed or mismatched input
	AcceptsVertexLayout(layout common.VertexLayout) error

	// Descriptor returns the descriptor to create a gpu.ShaderProgram from this shader.
	Descriptor() gpu.ShaderProgramDescriptor

	// Declarations returns the binding annotations found while pre-processing.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes source and reflects its interface.
//
// Parameters:
//   - key: a unique identifier for the shader, also used as the program label
//   - source: WGSL source, possibly containing @excess: annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: a pre-processing or reflection error
func NewShader(key, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		declarations: append([]Annotation(nil), pp.Declarations()...),
	}

	cleaned := stripComments(processed)
	if s.entryPoints, err = parseEntryPoints(cleaned); err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}

	var stages gpu.ShaderStage
	for _, ep := range s.entryPoints {
		stages |= ep.Stage
	}
	dynamic := make(map[int]bool)
	for _, d := range s.declarations {
		if d.Dynamic() && *d.Group == 0 {
			dynamic[*d.Binding] = true
		}
	}
	if s.layout, s.bindingNames, err = parseDescriptorSetLayout(cleaned, stages, dynamic); err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}

	if stages&gpu.ShaderStageVertex != 0 {
		if s.vertexInputs, err = parseVertexInputs(cleaned); err != nil {
			return nil, fmt.Errorf("shader %q: %w", key, err)
		}
	}
	return s, nil
}

// LoadShader reads WGSL source from path and parses it with NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - path: the WGSL file to read
//
// Returns:
//   - Shader: the parsed shader
//   - error: a read, pre-processing or reflection error
func LoadShader(key, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}
	return NewShader(key, string(data))
}

func (s *shader) Key() string                     { return s.key }
func (s *shader) Source() string                  { return s.source }
func (s *shader) EntryPoints() []gpu.EntryPoint   { return s.entryPoints }
func (s *shader) Layout() gpu.DescriptorSetLayout { return s.layout }
func (s *shader) Declarations() []Annotation      { return s.declarations }

func (s *shader) VertexInputs() []common.VertexAttribute {
	return s.vertexInputs
}

func (s *shader) EntryPoint(stage gpu.ShaderStage) (gpu.EntryPoint, bool) {
	for _, ep := range s.entryPoints {
		if ep.Stage == stage {
			return ep, true
		}
	}
	return gpu.EntryPoint{}, false
}

func (s *shader) BindingFromVarName(varName string) (uint32, bool) {
	b, ok := s.bindingNames[varName]
	return b, ok
}

func (s *shader) AcceptsVertexLayout(layout common.VertexLayout) error {
	for _, in := range s.vertexInputs {
		fed := false
		for _, a := range layout.Attributes {
			if a.Location != in.Location {
				continue
			}
			if a.Format != in.Format {
				return fmt.Errorf("shader %q: input location %d expects %v, layout provides %v", s.key, in.Location, in.Format, a.Format)
			}
			fed = true
			break
		}
		if !fed {
			return fmt.Errorf("shader %q: input location %d is not provided by layout %s", s.key, in.Location, layout.Key())
		}
	}
	return nil
}

func (s *shader) Descriptor() gpu.ShaderProgramDescriptor {
	return gpu.ShaderProgramDescriptor{
		Label:       s.key,
		Source:      s.source,
		EntryPoints: s.entryPoints,
		Layout:      s.layout,
	}
}
