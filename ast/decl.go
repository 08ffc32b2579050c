package ast

import "fmt"

// Position is a source location.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	switch {
	case p.File == "" && !p.IsValid():
		return "-"
	case !p.IsValid():
		return p.File
	case p.File == "":
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Linkage of a declaration.
type Linkage uint8

const (
	NoLinkage Linkage = iota
	InternalLinkage
	ExternalLinkage
)

// NamedDecl is anything diagnostics can point at.
type NamedDecl interface {
	DeclName() string
	Location() Position
}

// RecordDecl declares a struct or union.
type RecordDecl struct {
	// Name is the tag; empty for anonymous records.
	Name string
	// TypedefName is the typedef introduced for an anonymous record, if any.
	TypedefName string
	Union       bool
	Packed      bool
	// Defined is false for forward declarations.
	Defined bool
	Fields  []*FieldDecl
	Pos     Position
}

func (d *RecordDecl) DeclName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.TypedefName
}

func (d *RecordDecl) Location() Position { return d.Pos }

// HasFlexibleArrayMember reports whether the last field is an array without size.
func (d *RecordDecl) HasFlexibleArrayMember() bool {
	if len(d.Fields) == 0 {
		return false
	}
	_, ok := Canonical(d.Fields[len(d.Fields)-1].Type).(*IncompleteArrayType)
	return ok
}

// FieldDecl is a member of a record.
type FieldDecl struct {
	Name     string
	Type     Type
	BitField bool
	BitWidth int
	Pos      Position
}

func (d *FieldDecl) DeclName() string   { return d.Name }
func (d *FieldDecl) Location() Position { return d.Pos }

// VarDecl is a variable or parameter declaration.
type VarDecl struct {
	Name    string
	Type    Type
	Linkage Linkage
	Pos     Position
}

func (d *VarDecl) DeclName() string   { return d.Name }
func (d *VarDecl) Location() Position { return d.Pos }

// FuncDecl is a function (kernel) declaration.
type FuncDecl struct {
	Name    string
	Result  Type
	Params  []*VarDecl
	Linkage Linkage
	Pos     Position
}

func (d *FuncDecl) DeclName() string   { return d.Name }
func (d *FuncDecl) Location() Position { return d.Pos }

// TranslationUnit holds the declarations of one compilation in source order.
type TranslationUnit struct {
	Vars  []*VarDecl
	Funcs []*FuncDecl
	// Records lists every record declared, keyed by DeclName where known.
	Records []*RecordDecl
}

// Var returns the variable named name.
func (tu *TranslationUnit) Var(name string) *VarDecl {
	for _, v := range tu.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Func returns the function named name.
func (tu *TranslationUnit) Func(name string) *FuncDecl {
	for _, f := range tu.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
