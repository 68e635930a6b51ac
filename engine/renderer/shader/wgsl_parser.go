package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps WGSL vertex input types to vertex formats.
var wgslVertexFormatMap = map[string]common.VertexFormat{
	"f32":       common.VertexFormatFloat32,
	"vec2f":     common.VertexFormatFloat32x2,
	"vec2<f32>": common.VertexFormatFloat32x2,
	"vec3f":     common.VertexFormatFloat32x3,
	"vec3<f32>": common.VertexFormatFloat32x3,
	"vec4f":     common.VertexFormatFloat32x4,
	"vec4<f32>": common.VertexFormatFloat32x4,
	"u32":       common.VertexFormatUint32,
	"vec4u":     common.VertexFormatUint32x4,
	"vec4<u32>": common.VertexFormatUint32x4,
}

// wgslTexelFormatMap maps the storage texel formats the engine writes to texture formats.
var wgslTexelFormatMap = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"r32float":    wgpu.TextureFormatR32Float,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	entryRegexes = map[gpu.ShaderStage]*regexp.Regexp{
		gpu.ShaderStageVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		gpu.ShaderStageFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		gpu.ShaderStageCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, name and type of
	// declarations like `@group(0) @binding(3) var<uniform> material: MaterialParams;`
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoints finds the first entry point of each stage. A program has either a vertex
// and a fragment entry point or a single compute entry point.
//
// Parameters:
//   - source: comment-free WGSL source
//
// Returns:
//   - []gpu.EntryPoint: entry points in vertex, fragment, compute order
//   - error: an error for a program with no usable stage combination
func parseEntryPoints(source string) ([]gpu.EntryPoint, error) {
	var eps []gpu.EntryPoint
	for _, stage := range []gpu.ShaderStage{gpu.ShaderStageVertex, gpu.ShaderStageFragment, gpu.ShaderStageCompute} {
		m := entryRegexes[stage].FindStringSubmatch(source)
		if m == nil {
			continue
		}
		ep := gpu.EntryPoint{Stage: stage, Name: m[1]}
		if stage == gpu.ShaderStageCompute {
			ep.WorkgroupSize = parseWorkgroupSize(source)
		}
		eps = append(eps, ep)
	}

	var stages gpu.ShaderStage
	for _, ep := range eps {
		stages |= ep.Stage
	}
	switch stages {
	case gpu.ShaderStageVertex | gpu.ShaderStageFragment, gpu.ShaderStageCompute:
		return eps, nil
	case 0:
		return nil, fmt.Errorf("no entry points")
	default:
		return nil, fmt.Errorf("entry points must be vertex+fragment or compute only, found %d stage(s)", len(eps))
	}
}

// parseWorkgroupSize extracts @workgroup_size(x, y, z). Omitted dimensions default to 1, as
// does a missing annotation.
//
// Parameters:
//   - source: comment-free WGSL source
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(source)
	if match == nil {
		return result
	}
	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil && v > 0 {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseBindings returns every @group/@binding declaration of the source.
func parseBindings(source string) []parsedBinding {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(source, -1)
	out := make([]parsedBinding, 0, len(matches))
	for _, m := range matches {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		out = append(out, parsedBinding{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(m[3]),
			varName:      strings.TrimSpace(m[4]),
			typeName:     strings.TrimSpace(m[5]),
		})
	}
	return out
}

// parseDescriptorSetLayout builds descriptor set 0 from the source's binding declarations.
// Every binding is visible to all stages of the program. Uniform buffers named in dynamic are
// dynamically offset.
//
// Parameters:
//   - source: comment-free WGSL source
//   - stages: the union of the program's entry point stages
//   - dynamic: binding indices declared with a dynamic offset
//
// Returns:
//   - gpu.DescriptorSetLayout: the layout, entries sorted by binding
//   - map[string]uint32: binding index by variable name
//   - error: an error for bindings outside set 0, duplicates or unsupported resource types
func parseDescriptorSetLayout(source string, stages gpu.ShaderStage, dynamic map[int]bool) (gpu.DescriptorSetLayout, map[string]uint32, error) {
	structSizes := computeStructSizes(parseStructBlocks(source))

	var layout gpu.DescriptorSetLayout
	names := make(map[string]uint32)
	for _, b := range parseBindings(source) {
		if b.group != 0 {
			return gpu.DescriptorSetLayout{}, nil, fmt.Errorf("binding %q uses group %d; only group 0 is supported", b.varName, b.group)
		}
		if _, ok := layout.Entry(uint32(b.binding)); ok {
			return gpu.DescriptorSetLayout{}, nil, fmt.Errorf("binding %d declared twice", b.binding)
		}
		entry, err := classifyResource(b, stages, structSizes)
		if err != nil {
			return gpu.DescriptorSetLayout{}, nil, err
		}
		if dynamic[b.binding] {
			if entry.Type != gpu.BindingTypeUniformBuffer {
				return gpu.DescriptorSetLayout{}, nil, fmt.Errorf("binding %q is declared dynamic but is %v", b.varName, entry.Type)
			}
			entry.Type = gpu.BindingTypeDynamicUniformBuffer
		}
		layout.Entries = append(layout.Entries, entry)
		names[b.varName] = entry.Binding
	}

	slices.SortFunc(layout.Entries, func(a, b gpu.DescriptorLayoutEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	return layout, names, nil
}

// parseVertexInputs finds the first pure vertex input struct and returns its attributes.
// Offsets are left zero since the mesh's vertex layout decides where attributes live.
//
// Parameters:
//   - source: comment-free WGSL source
//
// Returns:
//   - []common.VertexAttribute: the shader's vertex inputs, or nil for compute programs
//   - error: an error if an input has a type with no vertex format
func parseVertexInputs(source string) ([]common.VertexAttribute, error) {
	for _, ps := range parseStructBlocks(source) {
		if !isVertexInputStruct(ps) {
			continue
		}
		attrs := make([]common.VertexAttribute, 0, len(ps.fields))
		for _, f := range ps.fields {
			format, ok := wgslVertexFormatMap[f.typeName]
			if !ok {
				return nil, fmt.Errorf("vertex input %s.%s has unsupported type %q", ps.name, f.name, f.typeName)
			}
			attrs = append(attrs, common.VertexAttribute{Location: uint32(f.location), Format: format})
		}
		return attrs, nil
	}
	return nil, nil
}

// parseStructBlocks finds all struct blocks and parses their fields.
//
// Parameters:
//   - source: comment-free WGSL source
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}
	return structs
}

// parseStructFields parses a struct body into fields with their @location and @builtin
// attributes.
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(line)}
		if m := locationRegex.FindStringSubmatch(line); m != nil {
			if loc, err := strconv.Atoi(m[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}
