package shader

// wgslTypeLayout holds the byte size and alignment of a WGSL type. Used to derive the minimum
// binding size of uniform buffers.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one field of a WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is one WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedBinding is one @group/@binding variable declaration.
type parsedBinding struct {
	group        int
	binding      int
	addressSpace string
	varName      string
	typeName     string
}
