// annotations.go defines the @excess: annotations understood by the WGSL pre-processor.
// Annotations are single-line WGSL comments that either inject the WGSL definition of a Go
// GPU type or declare a binding whose type is such a struct. Binding declarations are kept
// as Annotation values so reflection can learn what plain WGSL cannot express, namely which
// uniform bindings take a dynamic offset.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation inside a WGSL line comment.
const annotationPrefix = "@excess:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct at the annotation
	// site. It produces no declaration.
	//
	// Syntax: //@excess:include <struct_type>
	//
	// Example: //@excess:include per_object
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration for a
	// registered struct type and records the annotation as a declaration.
	//
	// Syntax: //@excess:group <group> <binding> <address_space> <var_name> <struct_type>
	//
	// Example: //@excess:group 0 0 dynamic_uniform object per_object
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation is one parsed @excess: annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct type
	//   - group:   [0] = address space, [1] = var name, [2] = struct type
	Args []AnnotationArg

	// Line is the 1-based source line of the annotation.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// Dynamic reports whether the annotation declares a dynamically offset uniform binding.
func (a Annotation) Dynamic() bool {
	return a.Type == AnnotationTypeBindingGroup && a.Args[0] == AnnotationArgDynamicUniform
}

// AnnotationArg is a typed annotation argument.
type AnnotationArg string

// Struct type arguments. Each names a Go GPU type with an embedded WGSL definition.
const (
	// annotationArgVertex is the VertexInput struct of model.Vertex.
	annotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgPerObject is the PerObjectUniforms struct of model.GPUPerObjectUniforms.
	AnnotationArgPerObject AnnotationArg = "per_object"

	// AnnotationArgMaterialParams is the MaterialParams struct of material.GPUMaterialParams.
	AnnotationArgMaterialParams AnnotationArg = "material_params"
)

// Address space arguments of group annotations.
const (
	// AnnotationArgUniform declares a plain var<uniform> binding.
	AnnotationArgUniform AnnotationArg = "uniform"

	// AnnotationArgDynamicUniform declares a var<uniform> binding bound with a dynamic offset.
	AnnotationArgDynamicUniform AnnotationArg = "dynamic_uniform"
)

var validStructTypes = []AnnotationArg{
	annotationArgVertex,
	AnnotationArgPerObject,
	AnnotationArgMaterialParams,
}

var validAddressSpaces = []AnnotationArg{
	AnnotationArgUniform,
	AnnotationArgDynamicUniform,
}

// parseAnnotation parses one WGSL source line. Lines without the annotation prefix yield
// nil and no error.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @excess annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @excess include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @excess include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @excess group annotation requires five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group number %q in @excess group annotation", lineNum, args[1])
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @excess group annotation", lineNum, args[2])
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @excess group annotation", lineNum, args[3])
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @excess group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @excess annotation type %q", lineNum, args[0])
	}
}
