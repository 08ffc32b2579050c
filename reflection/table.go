package reflection

import (
	"github.com/utrack/rsexport/ast"
)

// Table answers data type queries for one compilation. The backing data is
// immutable; only the name index is built, once, on first lookup.
type Table struct {
	specific map[string]DataType
	builtins map[ast.BuiltinKind]*Builtin
}

// New returns an empty table. Indexes are populated lazily.
func New() *Table {
	return &Table{}
}

// Lookup returns the reflection entry for dt, or nil when dt is not a table
// index (unknown or struct marker).
func (t *Table) Lookup(dt DataType) *Type {
	if !dt.Valid() {
		return nil
	}
	return &reflectionTypes[dt]
}

// SpecificType returns the data type of a record type name that denotes a
// matrix or runtime object, or DataTypeUnknown for every other name.
func (t *Table) SpecificType(name string) DataType {
	if name == "" {
		return DataTypeUnknown
	}
	if t.specific == nil {
		t.specific = make(map[string]DataType, len(specificTypes))
		for _, s := range specificTypes {
			t.specific[s.name] = s.dt
		}
	}
	if dt, ok := t.specific[name]; ok {
		return dt
	}
	return DataTypeUnknown
}

// Builtin returns the entry for scalar kind k, or nil when k is not exportable.
func (t *Table) Builtin(k ast.BuiltinKind) *Builtin {
	if t.builtins == nil {
		t.builtins = make(map[ast.BuiltinKind]*Builtin, len(builtins))
		for i := range builtins {
			t.builtins[builtins[i].Kind] = &builtins[i]
		}
	}
	return t.builtins[k]
}

// IsMatrix reports whether dt is one of the matrix types.
func (t *Table) IsMatrix(dt DataType) bool {
	e := t.Lookup(dt)
	return e != nil && e.IsMatrix()
}

// IsObject reports whether dt is a runtime object handle.
func (t *Table) IsObject(dt DataType) bool {
	e := t.Lookup(dt)
	return e != nil && e.IsObject()
}

// MatrixDim returns N for the NxN matrix data type, or 0.
func MatrixDim(dt DataType) int {
	switch dt {
	case DataTypeMatrix2x2:
		return 2
	case DataTypeMatrix3x3:
		return 3
	case DataTypeMatrix4x4:
		return 4
	}
	return 0
}

// MatrixType is the inverse of MatrixDim.
func MatrixType(dim int) DataType {
	switch dim {
	case 2:
		return DataTypeMatrix2x2
	case 3:
		return DataTypeMatrix3x3
	case 4:
		return DataTypeMatrix4x4
	}
	return DataTypeUnknown
}

// SizeInBits is the logical size of dt on a target. Object handles are the
// only types whose size depends on the pointer width.
func (t *Table) SizeInBits(dt DataType, is64Bit bool) uint32 {
	e := t.Lookup(dt)
	if e == nil {
		return 0
	}
	if e.IsObject() && is64Bit {
		return objectSizeInBits64
	}
	return e.SizeInBits
}

// Names lists every specific record type name in table order.
func Names() []string {
	ret := make([]string, len(specificTypes))
	for i, s := range specificTypes {
		ret[i] = s.name
	}
	return ret
}

// Builtins returns the exportable scalar kinds.
func Builtins() []ast.BuiltinKind {
	ret := make([]ast.BuiltinKind, len(builtins))
	for i := range builtins {
		ret[i] = builtins[i].Kind
	}
	return ret
}
