package export

import (
	"strconv"

	"github.com/utrack/rsexport/reflection"
)

// Class is the variant tag of an exported type.
type Class uint8

const (
	ClassPrimitive Class = iota
	ClassPointer
	ClassVector
	ClassMatrix
	ClassConstantArray
	ClassRecord
)

func (c Class) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassPointer:
		return "pointer"
	case ClassVector:
		return "vector"
	case ClassMatrix:
		return "matrix"
	case ClassConstantArray:
		return "constant-array"
	case ClassRecord:
		return "record"
	}
	return "Class(" + strconv.Itoa(int(c)) + ")"
}

// Handle is an index into the Context's type table. Zero is never a valid
// handle.
type Handle uint32

// InvalidHandle is the zero handle.
const InvalidHandle Handle = 0

// ExportType is the canonical descriptor of one exported type. Descriptors
// are owned by the Context that created them and are compared by pointer in
// the common case; use Equals for structural comparison.
type ExportType struct {
	ctx    *Context
	handle Handle
	name   string
	kept   bool

	// backend is the cached lowering; nil until first requested and reset
	// by Keep.
	backend *BackendType

	inner Inner
}

// Inner is the variant-specific payload of an ExportType.
type Inner interface {
	class() Class
}

// Primitive is a scalar, an object handle or the element data of a vector.
type Primitive struct {
	Type reflection.DataType
	// Normalized is set when the descriptor was built from a normalized
	// source type.
	Normalized bool
}

// Pointer points to a non-pointer descriptor.
type Pointer struct {
	Pointee Handle
}

// Vector is a fixed-size vector of a scalar data type.
type Vector struct {
	Primitive
	Len int
}

// Matrix is an NxN float matrix.
type Matrix struct {
	Dim int
}

// ConstantArray is a one-dimensional array with a fixed length.
type ConstantArray struct {
	Elem Handle
	Len  int
}

// Record is a struct. Artificial records are synthesized by the exporter
// (kernel parameter packs) and never come from user source.
type Record struct {
	Fields     []*Field
	Packed     bool
	Artificial bool

	// dataSize is the end of the last field; allocSize adds tail padding.
	dataSize  int
	allocSize int
}

// Field is one member of a Record.
type Field struct {
	Name   string
	Offset int

	typ    Handle
	parent Handle
	ctx    *Context
}

func (*Primitive) class() Class     { return ClassPrimitive }
func (*Pointer) class() Class       { return ClassPointer }
func (*Vector) class() Class        { return ClassVector }
func (*Matrix) class() Class        { return ClassMatrix }
func (*ConstantArray) class() Class { return ClassConstantArray }
func (*Record) class() Class        { return ClassRecord }

// Type is the descriptor of the field's type.
func (f *Field) Type() *ExportType { return f.ctx.Type(f.typ) }

// Parent is the record that owns the field.
func (f *Field) Parent() *ExportType { return f.ctx.Type(f.parent) }

func (et *ExportType) Class() Class      { return et.inner.class() }
func (et *ExportType) Name() string      { return et.name }
func (et *ExportType) Handle() Handle    { return et.handle }
func (et *ExportType) Inner() Inner      { return et.inner }
func (et *ExportType) IsKept() bool      { return et.kept }
func (et *ExportType) Context() *Context { return et.ctx }
func (et *ExportType) String() string    { return et.name }
func (et *ExportType) IsDummy() bool     { return IsDummyName(et.name) }

// Primitive returns the payload of a primitive descriptor, or nil.
func (et *ExportType) Primitive() *Primitive {
	p, _ := et.inner.(*Primitive)
	return p
}

// Vector returns the payload of a vector descriptor, or nil.
func (et *ExportType) Vector() *Vector {
	v, _ := et.inner.(*Vector)
	return v
}

// Matrix returns the payload of a matrix descriptor, or nil.
func (et *ExportType) Matrix() *Matrix {
	m, _ := et.inner.(*Matrix)
	return m
}

// Record returns the payload of a record descriptor, or nil.
func (et *ExportType) Record() *Record {
	r, _ := et.inner.(*Record)
	return r
}

// Pointee is the target of a pointer descriptor, or nil.
func (et *ExportType) Pointee() *ExportType {
	if p, ok := et.inner.(*Pointer); ok {
		return et.ctx.Type(p.Pointee)
	}
	return nil
}

// Elem is the element of a constant array descriptor, or nil.
func (et *ExportType) Elem() *ExportType {
	if a, ok := et.inner.(*ConstantArray); ok {
		return et.ctx.Type(a.Elem)
	}
	return nil
}

// Dim is the matrix dimension, or 0 for other variants.
func (et *ExportType) Dim() int {
	if m, ok := et.inner.(*Matrix); ok {
		return m.Dim
	}
	return 0
}

// Fields lists the record's fields in declaration order.
func (et *ExportType) Fields() []*Field {
	if r, ok := et.inner.(*Record); ok {
		return r.Fields
	}
	return nil
}

// DataType is the reflected data type of primitives and vectors. Records
// report DataTypeIsStruct and everything else DataTypeUnknown.
func (et *ExportType) DataType() reflection.DataType {
	switch in := et.inner.(type) {
	case *Primitive:
		return in.Type
	case *Vector:
		return in.Type
	case *Matrix:
		return reflection.MatrixType(in.Dim)
	case *Record:
		return reflection.DataTypeIsStruct
	}
	return reflection.DataTypeUnknown
}

// IsObject reports whether et is a runtime object handle.
func (et *ExportType) IsObject() bool {
	p, ok := et.inner.(*Primitive)
	return ok && et.ctx.table.IsObject(p.Type)
}

// Size is the element count: 1 for scalars, N for vectors and the length
// for arrays.
func (et *ExportType) Size() int {
	switch in := et.inner.(type) {
	case *Vector:
		return in.Len
	case *ConstantArray:
		return in.Len
	}
	return 1
}

// SizeInBits is the logical size of a primitive or vector. Object handles
// are 32 bits wide on 32-bit targets and 256 bits wide on 64-bit targets.
// Other variants report their store size in bits.
func (et *ExportType) SizeInBits() int {
	is64 := et.ctx.target.Is64Bit()
	switch in := et.inner.(type) {
	case *Primitive:
		return int(et.ctx.table.SizeInBits(in.Type, is64))
	case *Vector:
		return int(et.ctx.table.SizeInBits(in.Type, is64)) * in.Len
	}
	return et.StoreSize() * 8
}

// ElementName is the identifier used for the type in generated bindings.
func (et *ExportType) ElementName() string {
	switch in := et.inner.(type) {
	case *Primitive:
		if e := et.ctx.table.Lookup(in.Type); e != nil && e.RSShortType != "" {
			return e.RSShortType
		}
	case *Vector:
		if e := et.ctx.table.Lookup(in.Type); e != nil {
			return e.RSShortType + "_" + strconv.Itoa(in.Len)
		}
	case *ConstantArray:
		return et.Elem().ElementName()
	case *Record:
		return "ScriptField_" + et.name
	}
	return invalidElementName
}

// invalidElementName is not a valid identifier in any target language.
const invalidElementName = "@@INVALID@@"

// Keep marks et and everything it references as required in the output. It
// returns false if et was already kept. The cached backend type is dropped.
func (et *ExportType) Keep() bool {
	if et.kept {
		return false
	}
	et.kept = true
	et.backend = nil

	switch in := et.inner.(type) {
	case *Pointer:
		et.ctx.Type(in.Pointee).Keep()
	case *ConstantArray:
		et.ctx.Type(in.Elem).Keep()
	case *Record:
		for _, f := range in.Fields {
			f.Type().Keep()
		}
	}
	return true
}

// Equals reports structural equality. Identical descriptors are always
// equal; otherwise the variants and their payloads are compared, recursing
// into pointees, elements and fields.
func (et *ExportType) Equals(other *ExportType) bool {
	return equals(et, other, map[[2]*ExportType]bool{})
}

func equals(a, b *ExportType, inProgress map[[2]*ExportType]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Class() != b.Class() {
		return false
	}
	key := [2]*ExportType{a, b}
	if inProgress[key] {
		return true
	}
	inProgress[key] = true

	switch x := a.inner.(type) {
	case *Primitive:
		y := b.inner.(*Primitive)
		return x.Type == y.Type
	case *Vector:
		y := b.inner.(*Vector)
		return x.Type == y.Type && x.Len == y.Len
	case *Matrix:
		y := b.inner.(*Matrix)
		return x.Dim == y.Dim
	case *Pointer:
		return equals(a.Pointee(), b.Pointee(), inProgress)
	case *ConstantArray:
		y := b.inner.(*ConstantArray)
		return x.Len == y.Len && equals(a.Elem(), b.Elem(), inProgress)
	case *Record:
		y := b.inner.(*Record)
		if len(x.Fields) != len(y.Fields) || x.Packed != y.Packed {
			return false
		}
		for i := range x.Fields {
			if !equals(x.Fields[i].Type(), y.Fields[i].Type(), inProgress) {
				return false
			}
		}
		return true
	}
	return false
}
