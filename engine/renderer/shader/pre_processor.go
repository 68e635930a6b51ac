// pre_processor.go implements the WGSL pre-processor. It replaces @excess: annotations with
// injected struct definitions or generated binding declarations and collects the binding
// declarations for reflection.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
)

// registryEntry pairs an embedded WGSL struct definition with its WGSL type name.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	structRegistry map[AnnotationArg]registryEntry

	// declarations accumulates group annotations during one Process call.
	declarations []Annotation
}

// PreProcessor expands @excess: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation in source. include annotations are replaced by the
	// struct definition; group annotations by a @group/@binding declaration. The declarations
	// list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if any annotation is malformed or a struct is included twice
	Process(source string) (string, error)

	// Declarations returns the group annotations of the last Process call in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a pre-processor knowing every engine GPU struct type.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			annotationArgVertex:         {Source: model.GPUVertexSource, Type: "VertexInput"},
			AnnotationArgPerObject:      {Source: model.GPUPerObjectUniformsSource, Type: "PerObjectUniforms"},
			AnnotationArgMaterialParams: {Source: material.GPUMaterialParamsSource, Type: "MaterialParams"},
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]int)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if prev, ok := included[a.Args[0]]; ok {
				return "", fmt.Errorf("line %d: %q already included on line %d", i+1, a.Args[0], prev)
			}
			included[a.Args[0]] = i + 1
			out = append(out, strings.TrimRight(p.structRegistry[a.Args[0]].Source, "\n"))
		case AnnotationTypeBindingGroup:
			entry := p.structRegistry[a.Args[2]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", *a.Group, *a.Binding, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
