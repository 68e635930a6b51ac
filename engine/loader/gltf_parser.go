package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.x")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
	errAccessorOutOfRange = errors.New("accessor reads past the end of its buffer")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser decodes a glTF JSON or GLB container, resolves its buffers and reads typed accessor data.
// This is internal to the loader package.
type gltfParser interface {
	// Parse decodes data as GLB when isGLB is set and as glTF JSON otherwise.
	// Relative buffer and image URIs are resolved against baseDir.
	//
	// Parameters:
	//   - data: the whole file contents
	//   - isGLB: true if data is a GLB container
	//   - baseDir: directory for relative URIs, empty to disallow them
	//
	// Returns:
	//   - error: error if parsing fails
	Parse(data []byte, isGLB bool, baseDir string) error

	// Document returns the parsed glTF document, or nil before a successful Parse.
	Document() *gltfDocument

	// ReadFloats reads an accessor as a flat slice of float32 with components values per element.
	// FLOAT accessors are read as-is; normalized UNSIGNED_BYTE and UNSIGNED_SHORT accessors are scaled to [0, 1].
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//   - components: the expected component count (2 for VEC2, 3 for VEC3, ...)
	//
	// Returns:
	//   - []float32: count*components values
	//   - error: error if the accessor has another shape or reads out of bounds
	ReadFloats(accessorIndex int, components int) ([]float32, error)

	// ReadIndices reads a SCALAR accessor of UNSIGNED_BYTE, UNSIGNED_SHORT or UNSIGNED_INT as uint32 indices.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the index data
	//   - error: error if reading fails
	ReadIndices(accessorIndex int) ([]uint32, error)

	// ReadImage returns the encoded bytes of an image, whether embedded in a bufferView,
	// a data URI or a file next to the document.
	//
	// Parameters:
	//   - imageIndex: the index of the image
	//
	// Returns:
	//   - []byte: the encoded image
	//   - string: a name usable for format detection
	//   - error: error if the image cannot be resolved
	ReadImage(imageIndex int) ([]byte, string, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Parse(data []byte, isGLB bool, baseDir string) error {
	p.baseDir = baseDir
	p.glbBinaryChunk = nil
	p.document = nil

	jsonData := data
	if isGLB {
		var err error
		if jsonData, err = p.splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("required glTF extensions %v: %w", doc.ExtensionsRequired, ErrUnsupportedFormat)
	}
	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// splitGLB validates a GLB container and returns its JSON chunk, keeping the BIN chunk for buffer 0.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParserImpl) splitGLB(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errors.New("GLB file too small")
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return nil, fmt.Errorf("GLB chunk of %d bytes exceeds file: %w", chunkHeader.ChunkLength, errBufferSizeMismatch)
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunkHeader.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = chunkData
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = chunkData
		}
	}

	if jsonData == nil {
		return nil, errMissingJSONChunk
	}
	return jsonData, nil
}

// loadBuffers loads all buffer data (from URIs, embedded data, or GLB binary chunk).
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		if buf.URI == "" {
			if i != 0 || p.glbBinaryChunk == nil {
				return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
			}
			buf.Data = p.glbBinaryChunk
		} else {
			data, err := p.loadURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

// loadURI loads data from a data: URI or a file path relative to the document.
func (p *gltfParserImpl) loadURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}
	if p.baseDir == "" {
		return nil, fmt.Errorf("external URI %q without a base directory: %w", uri, errInvalidBufferURI)
	}

	data, err := os.ReadFile(filepath.Join(p.baseDir, filepath.FromSlash(uri)))
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", uri, err)
	}
	return data, nil
}

// decodeDataURI decodes a base64 data URI.
// Format: data:[<mediatype>][;base64],<data>
func decodeDataURI(uri string) ([]byte, error) {
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, errInvalidBufferURI
	}

	header := uri[5:commaIdx]
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(uri[commaIdx+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// bufferViewBytes returns the bytes a buffer view covers.
func (p *gltfParserImpl) bufferViewBytes(index int) ([]byte, *gltfBufferView, error) {
	if index < 0 || index >= len(p.document.BufferViews) {
		return nil, nil, fmt.Errorf("bufferView index %d out of range", index)
	}
	bv := &p.document.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	data := p.document.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if bv.ByteOffset < 0 || end > len(data) {
		return nil, nil, fmt.Errorf("bufferView %d: %w", index, errAccessorOutOfRange)
	}
	return data[bv.ByteOffset:end], bv, nil
}

// accessorElements returns the tightly packed bytes of every element of an accessor.
func (p *gltfParserImpl) accessorElements(accessorIndex int) ([]byte, *gltfAccessor, error) {
	if p.document == nil {
		return nil, nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, nil, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}

	acc := &p.document.Accessors[accessorIndex]
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("sparse accessor %d: %w", accessorIndex, ErrUnsupportedFormat)
	}

	elementSize := gltfComponentTypeSize(acc.ComponentType) * gltfAccessorTypeComponentCount(acc.Type)
	if elementSize == 0 {
		return nil, nil, fmt.Errorf("accessor %d has unknown layout %s/%d", accessorIndex, acc.Type, acc.ComponentType)
	}

	result := make([]byte, acc.Count*elementSize)
	// glTF: an accessor without a bufferView reads as zeros
	if acc.BufferView == nil {
		return result, acc, nil
	}

	view, bv, err := p.bufferViewBytes(*acc.BufferView)
	if err != nil {
		return nil, nil, err
	}

	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	if acc.Count > 0 && acc.ByteOffset+(acc.Count-1)*stride+elementSize > len(view) {
		return nil, nil, fmt.Errorf("accessor %d: %w", accessorIndex, errAccessorOutOfRange)
	}

	for i := 0; i < acc.Count; i++ {
		src := acc.ByteOffset + i*stride
		copy(result[i*elementSize:(i+1)*elementSize], view[src:src+elementSize])
	}
	return result, acc, nil
}

func (p *gltfParserImpl) ReadFloats(accessorIndex int, components int) ([]float32, error) {
	data, acc, err := p.accessorElements(accessorIndex)
	if err != nil {
		return nil, err
	}
	if gltfAccessorTypeComponentCount(acc.Type) != components {
		return nil, fmt.Errorf("accessor %d is %s, want %d components", accessorIndex, acc.Type, components)
	}

	result := make([]float32, acc.Count*components)
	switch {
	case acc.ComponentType == gltfComponentTypeFloat:
		for i := range result {
			result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case acc.ComponentType == gltfComponentTypeUnsignedByte && acc.Normalized:
		for i := range result {
			result[i] = float32(data[i]) / math.MaxUint8
		}
	case acc.ComponentType == gltfComponentTypeUnsignedShort && acc.Normalized:
		for i := range result {
			result[i] = float32(binary.LittleEndian.Uint16(data[i*2:])) / math.MaxUint16
		}
	default:
		return nil, fmt.Errorf("accessor %d: component type %d (normalized=%t) is not a float source", accessorIndex, acc.ComponentType, acc.Normalized)
	}
	return result, nil
}

func (p *gltfParserImpl) ReadIndices(accessorIndex int) ([]uint32, error) {
	data, acc, err := p.accessorElements(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	result := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range result {
			result[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range result {
			result[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range result {
			result[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}
	return result, nil
}

func (p *gltfParserImpl) ReadImage(imageIndex int) ([]byte, string, error) {
	if p.document == nil {
		return nil, "", errors.New("no document loaded")
	}
	if imageIndex < 0 || imageIndex >= len(p.document.Images) {
		return nil, "", fmt.Errorf("image index %d out of range", imageIndex)
	}

	img := &p.document.Images[imageIndex]
	name := img.Name
	if name == "" {
		name = fmt.Sprintf("image%d", imageIndex)
	}

	switch {
	case img.BufferView != nil:
		data, _, err := p.bufferViewBytes(*img.BufferView)
		return data, name, err
	case img.URI != "":
		if !strings.HasPrefix(img.URI, "data:") {
			name = img.URI
		}
		data, err := p.loadURI(img.URI)
		return data, name, err
	default:
		return nil, "", fmt.Errorf("image %d has neither a URI nor a bufferView", imageIndex)
	}
}

// gltfComponentTypeSize returns the byte size of a component type.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an accessor type.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
