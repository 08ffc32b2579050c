package export

import (
	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

// exportState is threaded through the exportability walk.
type exportState struct {
	// decl is the declaration being exported; may be nil.
	decl ast.NamedDecl
	// top is the outermost record entered so far.
	top *ast.RecordDecl
	// enclosing are the records whose fields are being walked, outermost
	// first.
	enclosing []*ast.RecordType
}

// exportRules decide whether a type can be represented as a descriptor at
// all, independently of the target API level.
type exportRules struct {
	c *Context
	r diag.Reporter

	// err is the first rejection, already reported.
	err error
}

func (x *exportRules) fail(s exportState, code diag.Code, template string, extra ...interface{}) {
	pos, name := locate(s.top, s.decl)
	err := report(x.r, pos, code, template, append([]interface{}{name}, extra...)...)
	if x.err == nil {
		x.err = err
	}
}

func (x *exportRules) builtin(t *ast.BuiltinType, s exportState) bool {
	if x.c.table.Builtin(t.Kind) != nil {
		return true
	}
	// Platform-sized types like wchar_t have no stable layout.
	x.fail(s, diag.CodeNotExportable, "built-in type cannot be exported: '%0' (%1)", t.Kind)
	return false
}

func (x *exportRules) record(t *ast.RecordType, s exportState) (exportState, bool, bool) {
	d := t.Decl
	if x.c.table.SpecificType(typeName(x.c, t)) != reflection.DataTypeUnknown {
		return s, false, true
	}

	if d.Union {
		top := s.top
		if top == nil {
			top = d
		}
		x.fail(exportState{decl: s.decl, top: top}, diag.CodeNotExportable, "unions cannot be exported: '%0'")
		return s, false, false
	}

	if !d.Defined {
		x.fail(exportState{top: d}, diag.CodeNotExportable, "struct is not defined in this module: '%0'")
		return s, false, false
	}

	next := s
	if next.top == nil {
		next.top = d
	} else if d.DeclName() == "" {
		// Top-level anonymous records are left to Normalize, which reports
		// them as unnamed rather than unrepresentable.
		x.fail(s, diag.CodeNotExportable, "anonymous structures cannot be exported: '%0'")
		return s, false, false
	}

	if d.HasFlexibleArrayMember() {
		x.fail(next, diag.CodeNotExportable, "structures with flexible array members cannot be exported: '%0'")
		return s, false, false
	}
	next.enclosing = append(append([]*ast.RecordType(nil), s.enclosing...), t)
	return next, true, true
}

func (x *exportRules) field(rec *ast.RecordType, f *ast.FieldDecl, s exportState) bool {
	if !f.BitField {
		return true
	}
	name := rec.Decl.DeclName()
	if s.top != nil {
		name = s.top.DeclName()
	}
	err := report(x.r, f.Pos, diag.CodeNotExportable, "bit fields are not able to be exported: '%0.%1'", name, f.Name)
	if x.err == nil {
		x.err = err
	}
	return false
}

func (x *exportRules) pointer(t *ast.PointerType, s exportState) (exportState, bool) {
	pointee := ast.Canonical(t.Pointee)
	// A record may point back at itself or at an enclosing record.
	if s.top != nil && !encloses(s, pointee) {
		x.fail(s, diag.CodeNotExportable, "structures containing pointers cannot be exported: '%0'")
		return s, false
	}
	if _, ok := pointee.(*ast.PointerType); ok {
		x.fail(s, diag.CodeNotExportable, "multiple levels of pointers cannot be exported: '%0'")
		return s, false
	}
	if ast.IsArray(pointee) {
		x.fail(s, diag.CodeNotExportable, "pointers to arrays cannot be exported: '%0'")
		return s, false
	}
	return s, true
}

func encloses(s exportState, t ast.Type) bool {
	for _, rt := range s.enclosing {
		if ast.Type(rt) == t {
			return true
		}
	}
	return false
}

func (x *exportRules) vector(t *ast.VectorType, s exportState) (exportState, bool) {
	if t.Len < 2 || t.Len > reflection.MaxVectorSize {
		x.fail(s, diag.CodeNotExportable, "vectors of width %1 cannot be exported: '%0'", t.Len)
		return s, false
	}
	if _, ok := ast.Canonical(t.Elem).(*ast.BuiltinType); !ok {
		x.fail(s, diag.CodeNotExportable, "vectors of non-primitive types cannot be exported: '%0'")
		return s, false
	}
	return s, true
}

func (x *exportRules) array(t *ast.ConstantArrayType, s exportState) (exportState, bool) {
	elem := ast.Canonical(t.Elem)
	if ast.IsArray(elem) {
		x.fail(s, diag.CodeNotExportable, "multidimensional arrays cannot be exported: '%0'")
		return s, false
	}
	if vt, ok := elem.(*ast.VectorType); ok {
		if _, ok := ast.Canonical(vt.Elem).(*ast.BuiltinType); !ok {
			x.fail(s, diag.CodeNotExportable, "vectors of non-primitive types cannot be exported: '%0'")
			return s, false
		}
		if vt.Len == 3 && t.Len != 1 {
			x.fail(s, diag.CodeNotExportable, "arrays of width 3 vector types cannot be exported: '%0'")
			return s, false
		}
	}
	if t.Len <= 0 {
		x.fail(s, diag.CodeNotExportable, "zero-length arrays cannot be exported: '%0'")
		return s, false
	}
	return s, true
}

// Enumerations are exported as plain ints.
func (x *exportRules) enum(*ast.EnumType, exportState) ast.Type {
	return x.c.ast.IntType()
}

func (x *exportRules) other(t ast.Type, s exportState) bool {
	if _, ok := t.(*ast.IncompleteArrayType); ok {
		x.fail(s, diag.CodeNotExportable, "arrays without a size cannot be exported: '%0'")
		return false
	}
	x.fail(s, diag.CodeInternal, "unknown type cannot be exported: '%0' (%1)", t.Class())
	return false
}

// IsExportable returns the canonical form of t if it can be exported in the
// context of decl, which may be nil. Rejections are reported to the context's
// reporter and returned as an error wrapping the diag sentinel.
func (c *Context) IsExportable(t ast.Type, decl ast.NamedDecl) (ast.Type, error) {
	return c.isExportable(t, decl, c.diags)
}

func (c *Context) isExportable(t ast.Type, decl ast.NamedDecl, r diag.Reporter) (ast.Type, error) {
	if t == nil {
		return nil, report(r, declPos(decl), diag.CodeInternal, "missing type: '%0'", declName(decl))
	}
	visited := visitSet{}
	rules := &exportRules{c: c, r: r}
	ret := newWalker[exportState](visited, rules).walk(t, exportState{decl: decl})
	if ret == nil {
		if rules.err == nil {
			return nil, report(r, declPos(decl), diag.CodeInternal, "type was rejected without a diagnostic: '%0'", declName(decl))
		}
		return nil, rules.err
	}
	return ret, nil
}

func declPos(d ast.NamedDecl) ast.Position {
	if d == nil {
		return ast.Position{}
	}
	return d.Location()
}

func declName(d ast.NamedDecl) string {
	if d == nil {
		return ""
	}
	return d.DeclName()
}
