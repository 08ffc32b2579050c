// Package ast is the boundary between the type exporter and the front end
// that parsed the kernel sources. It models only what export needs: the
// canonical shape of a type and the declarations that carry one.
package ast

import "fmt"

// TypeClass is the structural shape of a canonical type.
type TypeClass uint8

const (
	ClassInvalid TypeClass = iota
	ClassBuiltin
	ClassRecord
	ClassPointer
	ClassVector
	ClassConstantArray
	ClassIncompleteArray
	ClassEnum
	ClassTypedef
	ClassFunction
)

func (c TypeClass) String() string {
	switch c {
	case ClassBuiltin:
		return "Builtin"
	case ClassRecord:
		return "Record"
	case ClassPointer:
		return "Pointer"
	case ClassVector:
		return "ExtVector"
	case ClassConstantArray:
		return "ConstantArray"
	case ClassIncompleteArray:
		return "IncompleteArray"
	case ClassEnum:
		return "Enum"
	case ClassTypedef:
		return "Typedef"
	case ClassFunction:
		return "FunctionProto"
	default:
		return "Invalid"
	}
}

// Type is a reference into the front end's type graph. Canonical types are
// uniqued by Context, so two canonical types are the same type iff they are
// the same value.
type Type interface {
	Class() TypeClass
	// Canonical strips typedefs down to the structural type.
	Canonical() Type
	String() string
}

// BuiltinKind enumerates the scalar keywords of the kernel language.
type BuiltinKind uint8

const (
	Void BuiltinKind = iota
	Bool
	CharU
	UChar
	Char16
	Char32
	UShort
	UInt
	ULong
	ULongLong
	CharS
	SChar
	WChar
	Short
	Int
	Long
	LongLong
	Half
	Float
	Double
	LongDouble
)

var builtinNames = [...]string{
	Void:       "void",
	Bool:       "bool",
	CharU:      "char",
	UChar:      "unsigned char",
	Char16:     "char16_t",
	Char32:     "char32_t",
	UShort:     "unsigned short",
	UInt:       "unsigned int",
	ULong:      "unsigned long",
	ULongLong:  "unsigned long long",
	CharS:      "char",
	SChar:      "signed char",
	WChar:      "wchar_t",
	Short:      "short",
	Int:        "int",
	Long:       "long",
	LongLong:   "long long",
	Half:       "half",
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
}

func (k BuiltinKind) String() string {
	if int(k) < len(builtinNames) {
		return builtinNames[k]
	}
	return fmt.Sprintf("BuiltinKind(%d)", k)
}

// BuiltinType is a scalar keyword type.
type BuiltinType struct {
	Kind BuiltinKind
}

func (t *BuiltinType) Class() TypeClass { return ClassBuiltin }
func (t *BuiltinType) Canonical() Type  { return t }
func (t *BuiltinType) String() string   { return t.Kind.String() }

// RecordType is a struct or union type. Its layout lives in Decl.
type RecordType struct {
	Decl *RecordDecl
}

func (t *RecordType) Class() TypeClass { return ClassRecord }
func (t *RecordType) Canonical() Type  { return t }

func (t *RecordType) String() string {
	kw := "struct"
	if t.Decl.Union {
		kw = "union"
	}
	if t.Decl.Name == "" {
		if t.Decl.TypedefName != "" {
			return t.Decl.TypedefName
		}
		return kw + " (anonymous)"
	}
	return kw + " " + t.Decl.Name
}

// PointerType is a pointer to Pointee.
type PointerType struct {
	Pointee Type
}

func (t *PointerType) Class() TypeClass { return ClassPointer }
func (t *PointerType) Canonical() Type  { return t }
func (t *PointerType) String() string   { return t.Pointee.String() + " *" }

// VectorType is a fixed-size ext vector of Elem.
type VectorType struct {
	Elem Type
	Len  int
}

func (t *VectorType) Class() TypeClass { return ClassVector }
func (t *VectorType) Canonical() Type  { return t }

func (t *VectorType) String() string {
	return fmt.Sprintf("%s __attribute__((ext_vector_type(%d)))", t.Elem, t.Len)
}

// ConstantArrayType is an array with a size known at compile time.
type ConstantArrayType struct {
	Elem Type
	Len  int
}

func (t *ConstantArrayType) Class() TypeClass { return ClassConstantArray }
func (t *ConstantArrayType) Canonical() Type  { return t }
func (t *ConstantArrayType) String() string   { return fmt.Sprintf("%s [%d]", t.Elem, t.Len) }

// IncompleteArrayType is an array without a size, e.g. a flexible array member.
type IncompleteArrayType struct {
	Elem Type
}

func (t *IncompleteArrayType) Class() TypeClass { return ClassIncompleteArray }
func (t *IncompleteArrayType) Canonical() Type  { return t }
func (t *IncompleteArrayType) String() string   { return t.Elem.String() + " []" }

// EnumType is an enumeration.
type EnumType struct {
	Name string
}

func (t *EnumType) Class() TypeClass { return ClassEnum }
func (t *EnumType) Canonical() Type  { return t }
func (t *EnumType) String() string   { return "enum " + t.Name }

// TypedefType is a named alias. It is never canonical.
type TypedefType struct {
	Name       string
	Underlying Type
}

func (t *TypedefType) Class() TypeClass { return ClassTypedef }
func (t *TypedefType) Canonical() Type  { return t.Underlying.Canonical() }
func (t *TypedefType) String() string   { return t.Name }

// FunctionType is a function prototype. Export never accepts it.
type FunctionType struct {
	Result Type
	Params []Type
}

func (t *FunctionType) Class() TypeClass { return ClassFunction }
func (t *FunctionType) Canonical() Type  { return t }
func (t *FunctionType) String() string   { return t.Result.String() + " (*)(...)" }

// Canonical is a nil-safe shorthand for t.Canonical().
func Canonical(t Type) Type {
	if t == nil {
		return nil
	}
	return t.Canonical()
}

// IsArray reports whether t is canonically an array of any kind.
func IsArray(t Type) bool {
	switch Canonical(t).(type) {
	case *ConstantArrayType, *IncompleteArrayType:
		return true
	}
	return false
}
