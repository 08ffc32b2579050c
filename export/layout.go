package export

import (
	"fmt"
	"strings"

	"modernc.org/mathutil"

	"github.com/utrack/rsexport/reflection"
)

// BackendKind is the machine-level shape of a lowered type.
type BackendKind uint8

const (
	BackendInt BackendKind = iota
	BackendFloat
	BackendVector
	BackendArray
	BackendStruct
	BackendPointer
)

// BackendType is the machine-level lowering of a descriptor: what the code
// generator will see. Pointers carry the pointee's identity name instead of
// its lowering, so cyclic records lower to finite trees.
type BackendType struct {
	Kind BackendKind
	// Bits is the width of Int and Float.
	Bits   int
	Elem   *BackendType
	Len    int
	Fields []*BackendType
	Packed bool
	// Align overrides the natural alignment when not zero.
	Align   int
	Pointee string
}

func (b *BackendType) String() string {
	if b == nil {
		return "void"
	}
	switch b.Kind {
	case BackendInt:
		return fmt.Sprintf("i%d", b.Bits)
	case BackendFloat:
		switch b.Bits {
		case 16:
			return "half"
		case 64:
			return "double"
		}
		return "float"
	case BackendVector:
		return fmt.Sprintf("<%d x %s>", b.Len, b.Elem)
	case BackendArray:
		return fmt.Sprintf("[%d x %s]", b.Len, b.Elem)
	case BackendPointer:
		return "%" + b.Pointee + "*"
	case BackendStruct:
		parts := make([]string, len(b.Fields))
		for i, f := range b.Fields {
			parts[i] = f.String()
		}
		s := "{ " + strings.Join(parts, ", ") + " }"
		if b.Packed {
			return "<" + s + ">"
		}
		return s
	}
	return "?"
}

// DataLayout answers size and alignment queries for one target.
type DataLayout struct {
	PointerSize int
}

// ABIAlign is the alignment of b in bytes.
func (l DataLayout) ABIAlign(b *BackendType) int {
	if b == nil {
		return 1
	}
	if b.Align != 0 {
		return b.Align
	}
	switch b.Kind {
	case BackendInt, BackendFloat:
		return mathutil.Max(1, b.Bits/8)
	case BackendVector:
		return nextPow2(l.StoreSize(b))
	case BackendArray:
		return l.ABIAlign(b.Elem)
	case BackendPointer:
		return l.PointerSize
	case BackendStruct:
		if b.Packed {
			return 1
		}
		align := 1
		for _, f := range b.Fields {
			align = mathutil.Max(align, l.ABIAlign(f))
		}
		return align
	}
	return 1
}

// StoreSize is the number of bytes written when a value of b is stored.
func (l DataLayout) StoreSize(b *BackendType) int {
	if b == nil {
		return 0
	}
	switch b.Kind {
	case BackendInt, BackendFloat:
		return (b.Bits + 7) / 8
	case BackendVector:
		return (l.elemBits(b.Elem)*b.Len + 7) / 8
	case BackendArray:
		return b.Len * l.AllocSize(b.Elem)
	case BackendPointer:
		return l.PointerSize
	case BackendStruct:
		_, end := l.fieldOffsets(b)
		return roundUp(end, l.ABIAlign(b))
	}
	return 0
}

// AllocSize is the stride of b in an array, including padding.
func (l DataLayout) AllocSize(b *BackendType) int {
	return roundUp(l.StoreSize(b), l.ABIAlign(b))
}

// FieldOffsets returns the byte offset of each field of a struct and the end
// of its last field.
func (l DataLayout) FieldOffsets(b *BackendType) ([]int, int) {
	if b == nil || b.Kind != BackendStruct {
		return nil, 0
	}
	return l.fieldOffsets(b)
}

func (l DataLayout) fieldOffsets(b *BackendType) ([]int, int) {
	offsets := make([]int, len(b.Fields))
	off := 0
	for i, f := range b.Fields {
		if !b.Packed {
			off = roundUp(off, l.ABIAlign(f))
		}
		offsets[i] = off
		off += l.AllocSize(f)
	}
	return offsets, off
}

func (l DataLayout) elemBits(b *BackendType) int {
	if b.Kind == BackendInt || b.Kind == BackendFloat {
		return b.Bits
	}
	return l.AllocSize(b) * 8
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << mathutil.BitLen(n-1)
}

// BackendType returns the lowering of et, computing it on first use.
func (et *ExportType) BackendType() *BackendType {
	if et.backend == nil {
		et.backend = et.lower()
	}
	return et.backend
}

func (et *ExportType) lower() *BackendType {
	switch in := et.inner.(type) {
	case *Primitive:
		if et.ctx.table.IsObject(in.Type) {
			return objectBackend(et.ctx.layout.PointerSize)
		}
		return scalarBackend(in.Type)
	case *Vector:
		return &BackendType{Kind: BackendVector, Elem: scalarBackend(in.Type), Len: in.Len}
	case *Matrix:
		return &BackendType{Kind: BackendStruct, Fields: []*BackendType{{
			Kind: BackendArray,
			Elem: &BackendType{Kind: BackendFloat, Bits: 32},
			Len:  in.Dim * in.Dim,
		}}}
	case *Pointer:
		return &BackendType{Kind: BackendPointer, Pointee: et.ctx.Type(in.Pointee).Name()}
	case *ConstantArray:
		return &BackendType{Kind: BackendArray, Elem: et.ctx.Type(in.Elem).BackendType(), Len: in.Len}
	case *Record:
		fields := make([]*BackendType, len(in.Fields))
		for i, f := range in.Fields {
			fields[i] = f.Type().BackendType()
		}
		return &BackendType{Kind: BackendStruct, Fields: fields, Packed: in.Packed}
	}
	return nil
}

// objectBackend is the handle struct of runtime objects: one 32-bit slot on
// 32-bit targets, four 64-bit slots on 64-bit targets. It is packed but
// aligned to the pointer size.
func objectBackend(ptrSize int) *BackendType {
	slot := &BackendType{Kind: BackendArray, Elem: &BackendType{Kind: BackendInt, Bits: 32}, Len: 1}
	if ptrSize == 8 {
		slot = &BackendType{Kind: BackendArray, Elem: &BackendType{Kind: BackendInt, Bits: 64}, Len: 4}
	}
	return &BackendType{Kind: BackendStruct, Fields: []*BackendType{slot}, Packed: true, Align: ptrSize}
}

func scalarBackend(dt reflection.DataType) *BackendType {
	switch dt {
	case reflection.DataTypeFloat16:
		return &BackendType{Kind: BackendFloat, Bits: 16}
	case reflection.DataTypeFloat32:
		return &BackendType{Kind: BackendFloat, Bits: 32}
	case reflection.DataTypeFloat64:
		return &BackendType{Kind: BackendFloat, Bits: 64}
	case reflection.DataTypeBoolean:
		return &BackendType{Kind: BackendInt, Bits: 1}
	case reflection.DataTypeSigned8, reflection.DataTypeUnsigned8:
		return &BackendType{Kind: BackendInt, Bits: 8}
	case reflection.DataTypeSigned16, reflection.DataTypeUnsigned16,
		reflection.DataTypeUnsigned565, reflection.DataTypeUnsigned5551, reflection.DataTypeUnsigned4444:
		return &BackendType{Kind: BackendInt, Bits: 16}
	case reflection.DataTypeSigned32, reflection.DataTypeUnsigned32:
		return &BackendType{Kind: BackendInt, Bits: 32}
	case reflection.DataTypeSigned64, reflection.DataTypeUnsigned64:
		return &BackendType{Kind: BackendInt, Bits: 64}
	}
	return nil
}

// StoreSize is the number of bytes meaningfully written for a value of et.
// For records this is the end of the last field.
func (et *ExportType) StoreSize() int {
	if r, ok := et.inner.(*Record); ok {
		return r.dataSize
	}
	return et.ctx.layout.StoreSize(et.BackendType())
}

// AllocSize is the stride of et, including trailing padding.
func (et *ExportType) AllocSize() int {
	if r, ok := et.inner.(*Record); ok {
		return r.allocSize
	}
	return et.ctx.layout.AllocSize(et.BackendType())
}

// Align is the ABI alignment of et in bytes.
func (et *ExportType) Align() int {
	return et.ctx.layout.ABIAlign(et.BackendType())
}

// layoutRecord fills in field offsets and sizes once all fields exist.
func (et *ExportType) layoutRecord() {
	r := et.inner.(*Record)
	bt := et.BackendType()
	offsets, end := et.ctx.layout.FieldOffsets(bt)
	for i, f := range r.Fields {
		f.Offset = offsets[i]
	}
	r.dataSize = end
	r.allocSize = roundUp(end, et.ctx.layout.ABIAlign(bt))
}
