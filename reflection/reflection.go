// Package reflection is the static table of data types the runtime knows how
// to reflect: scalar kinds, packed pixel formats, matrices and object handles,
// together with their names in C, Java and the runtime's element enum.
//
// DataType values are compiled into output binaries as plain integers. New
// kinds go at the end and retired values are never reused.
package reflection

import (
	"github.com/utrack/rsexport/ast"
)

// Version of the table layout. Bump when entries are appended.
const Version = 1

// Category groups data types.
type Category uint8

const (
	PrimitiveCategory Category = iota
	MatrixCategory
	ObjectCategory
)

// DataType identifies a reflected data type.
type DataType int

const (
	DataTypeIsStruct DataType = -2
	DataTypeUnknown  DataType = -1

	DataTypeFloat16      DataType = 0
	DataTypeFloat32      DataType = 1
	DataTypeFloat64      DataType = 2
	DataTypeSigned8      DataType = 3
	DataTypeSigned16     DataType = 4
	DataTypeSigned32     DataType = 5
	DataTypeSigned64     DataType = 6
	DataTypeUnsigned8    DataType = 7
	DataTypeUnsigned16   DataType = 8
	DataTypeUnsigned32   DataType = 9
	DataTypeUnsigned64   DataType = 10
	DataTypeBoolean      DataType = 11
	DataTypeUnsigned565  DataType = 12
	DataTypeUnsigned5551 DataType = 13
	DataTypeUnsigned4444 DataType = 14

	DataTypeMatrix2x2 DataType = 15
	DataTypeMatrix3x3 DataType = 16
	DataTypeMatrix4x4 DataType = 17

	DataTypeElement         DataType = 18
	DataTypeType            DataType = 19
	DataTypeAllocation      DataType = 20
	DataTypeSampler         DataType = 21
	DataTypeScript          DataType = 22
	DataTypeMesh            DataType = 23
	DataTypePath            DataType = 24
	DataTypeProgramFragment DataType = 25
	DataTypeProgramVertex   DataType = 26
	DataTypeProgramRaster   DataType = 27
	DataTypeProgramStore    DataType = 28
	DataTypeFont            DataType = 29

	// DataTypeMax is one past the last valid entry.
	DataTypeMax DataType = 30
)

// Valid reports whether dt indexes the table.
func (dt DataType) Valid() bool { return dt >= 0 && dt < DataTypeMax }

func (dt DataType) String() string {
	switch dt {
	case DataTypeIsStruct:
		return "STRUCT"
	case DataTypeUnknown:
		return "UNKNOWN"
	}
	if dt.Valid() {
		return reflectionTypes[dt].RSType
	}
	return "INVALID"
}

// Type describes one data type.
type Type struct {
	Category Category
	// RSType is the runtime element enum name, e.g. "FLOAT_32".
	RSType string
	// RSShortType is the short name used to build element names, e.g. "F32".
	RSShortType string
	SizeInBits  uint32
	CName       string
	JavaName    string
	// CVectorPrefix and JavaVectorPrefix build vector names, e.g. "Float" + "3".
	CVectorPrefix    string
	JavaVectorPrefix string
	// JavaPromotion is set when Java has no unsigned type of the same width
	// and the value is promoted to the next wider signed type.
	JavaPromotion bool
}

// IsObject reports whether t is an object handle type.
func (t *Type) IsObject() bool { return t.Category == ObjectCategory }

// IsMatrix reports whether t is one of the rs_matrix types.
func (t *Type) IsMatrix() bool { return t.Category == MatrixCategory }

// Object types are 32 bits on 32-bit targets but 256 bits on 64-bit targets.
// SizeInBits in the table holds the 32-bit value.
const objectSizeInBits64 = 256

var reflectionTypes = [DataTypeMax]Type{
	{PrimitiveCategory, "FLOAT_16", "F16", 16, "half", "half", "Half", "Half", false},
	{PrimitiveCategory, "FLOAT_32", "F32", 32, "float", "float", "Float", "Float", false},
	{PrimitiveCategory, "FLOAT_64", "F64", 64, "double", "double", "Double", "Double", false},
	{PrimitiveCategory, "SIGNED_8", "I8", 8, "int8_t", "byte", "Byte", "Byte", false},
	{PrimitiveCategory, "SIGNED_16", "I16", 16, "int16_t", "short", "Short", "Short", false},
	{PrimitiveCategory, "SIGNED_32", "I32", 32, "int32_t", "int", "Int", "Int", false},
	{PrimitiveCategory, "SIGNED_64", "I64", 64, "int64_t", "long", "Long", "Long", false},
	{PrimitiveCategory, "UNSIGNED_8", "U8", 8, "uint8_t", "short", "UByte", "Short", true},
	{PrimitiveCategory, "UNSIGNED_16", "U16", 16, "uint16_t", "int", "UShort", "Int", true},
	{PrimitiveCategory, "UNSIGNED_32", "U32", 32, "uint32_t", "long", "UInt", "Long", true},
	{PrimitiveCategory, "UNSIGNED_64", "U64", 64, "uint64_t", "long", "ULong", "Long", false},

	{PrimitiveCategory, "BOOLEAN", "BOOLEAN", 8, "bool", "boolean", "", "", false},

	{PrimitiveCategory, "UNSIGNED_5_6_5", "", 16, "", "", "", "", false},
	{PrimitiveCategory, "UNSIGNED_5_5_5_1", "", 16, "", "", "", "", false},
	{PrimitiveCategory, "UNSIGNED_4_4_4_4", "", 16, "", "", "", "", false},

	{MatrixCategory, "MATRIX_2X2", "", 4 * 32, "rsMatrix_2x2", "Matrix2f", "", "", false},
	{MatrixCategory, "MATRIX_3X3", "", 9 * 32, "rsMatrix_3x3", "Matrix3f", "", "", false},
	{MatrixCategory, "MATRIX_4X4", "", 16 * 32, "rsMatrix_4x4", "Matrix4f", "", "", false},

	{ObjectCategory, "RS_ELEMENT", "ELEMENT", 32, "Element", "Element", "", "", false},
	{ObjectCategory, "RS_TYPE", "TYPE", 32, "Type", "Type", "", "", false},
	{ObjectCategory, "RS_ALLOCATION", "ALLOCATION", 32, "Allocation", "Allocation", "", "", false},
	{ObjectCategory, "RS_SAMPLER", "SAMPLER", 32, "Sampler", "Sampler", "", "", false},
	{ObjectCategory, "RS_SCRIPT", "SCRIPT", 32, "Script", "Script", "", "", false},
	{ObjectCategory, "RS_MESH", "MESH", 32, "Mesh", "Mesh", "", "", false},
	{ObjectCategory, "RS_PATH", "PATH", 32, "Path", "Path", "", "", false},

	{ObjectCategory, "RS_PROGRAM_FRAGMENT", "PROGRAM_FRAGMENT", 32, "ProgramFragment", "ProgramFragment", "", "", false},
	{ObjectCategory, "RS_PROGRAM_VERTEX", "PROGRAM_VERTEX", 32, "ProgramVertex", "ProgramVertex", "", "", false},
	{ObjectCategory, "RS_PROGRAM_RASTER", "PROGRAM_RASTER", 32, "ProgramRaster", "ProgramRaster", "", "", false},
	{ObjectCategory, "RS_PROGRAM_STORE", "PROGRAM_STORE", 32, "ProgramStore", "ProgramStore", "", "", false},
	{ObjectCategory, "RS_FONT", "FONT", 32, "Font", "Font", "", "", false},
}

// MaxVectorSize is the widest vector the language has.
const MaxVectorSize = 4

// Builtin maps a scalar keyword to its data type and to the names of the
// scalar and its 2, 3 and 4 element vectors.
type Builtin struct {
	Kind  ast.BuiltinKind
	Type  DataType
	CName [MaxVectorSize]string
}

var builtins = []Builtin{
	{ast.Bool, DataTypeBoolean, [4]string{"bool", "bool2", "bool3", "bool4"}},
	{ast.CharU, DataTypeUnsigned8, [4]string{"uchar", "uchar2", "uchar3", "uchar4"}},
	{ast.UChar, DataTypeUnsigned8, [4]string{"uchar", "uchar2", "uchar3", "uchar4"}},
	{ast.Char16, DataTypeSigned16, [4]string{"short", "short2", "short3", "short4"}},
	{ast.Char32, DataTypeSigned32, [4]string{"int", "int2", "int3", "int4"}},
	{ast.UShort, DataTypeUnsigned16, [4]string{"ushort", "ushort2", "ushort3", "ushort4"}},
	{ast.UInt, DataTypeUnsigned32, [4]string{"uint", "uint2", "uint3", "uint4"}},
	{ast.ULong, DataTypeUnsigned32, [4]string{"uint", "uint2", "uint3", "uint4"}},
	{ast.ULongLong, DataTypeUnsigned64, [4]string{"ulong", "ulong2", "ulong3", "ulong4"}},

	{ast.CharS, DataTypeSigned8, [4]string{"char", "char2", "char3", "char4"}},
	{ast.SChar, DataTypeSigned8, [4]string{"char", "char2", "char3", "char4"}},
	{ast.Short, DataTypeSigned16, [4]string{"short", "short2", "short3", "short4"}},
	{ast.Int, DataTypeSigned32, [4]string{"int", "int2", "int3", "int4"}},
	{ast.Long, DataTypeSigned64, [4]string{"long", "long2", "long3", "long4"}},
	{ast.LongLong, DataTypeSigned64, [4]string{"long", "long2", "long3", "long4"}},
	{ast.Float, DataTypeFloat32, [4]string{"float", "float2", "float3", "float4"}},
	{ast.Double, DataTypeFloat64, [4]string{"double", "double2", "double3", "double4"}},
}

// specificTypes are the record type names with a dedicated data type.
var specificTypes = []struct {
	name string
	dt   DataType
}{
	{"rs_matrix2x2", DataTypeMatrix2x2},
	{"rs_matrix3x3", DataTypeMatrix3x3},
	{"rs_matrix4x4", DataTypeMatrix4x4},
	{"rs_element", DataTypeElement},
	{"rs_type", DataTypeType},
	{"rs_allocation", DataTypeAllocation},
	{"rs_sampler", DataTypeSampler},
	{"rs_script", DataTypeScript},
	{"rs_mesh", DataTypeMesh},
	{"rs_path", DataTypePath},
	{"rs_program_fragment", DataTypeProgramFragment},
	{"rs_program_vertex", DataTypeProgramVertex},
	{"rs_program_raster", DataTypeProgramRaster},
	{"rs_program_store", DataTypeProgramStore},
	{"rs_font", DataTypeFont},
}
