package export

import (
	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

type dialectState struct {
	decl ast.NamedDecl
	// pos is where dialect diagnostics without a record go.
	pos ast.Position
	// inComposite is set below the first array, struct or vector.
	inComposite bool
	// union is the innermost enclosing union.
	union *ast.RecordDecl
	top   *ast.RecordDecl
}

// dialectRules check a type against the target's API level and dialect.
// They never build descriptors.
type dialectRules struct {
	c      *Context
	target config.Target
}

func (v *dialectRules) builtin(t *ast.BuiltinType, s dialectState) bool {
	if !v.target.IsRestricted() {
		return true
	}
	switch t.Kind {
	case ast.Double, ast.LongDouble, ast.Long, ast.LongLong, ast.ULongLong:
	default:
		return true
	}
	if s.decl != nil {
		report(v.c.diags, s.pos, diag.CodeDialectViolation,
			"Builtin types > 32 bits in size are forbidden in the restricted dialect: '%0'", s.decl.DeclName())
	} else {
		report(v.c.diags, s.pos, diag.CodeDialectViolation,
			"Builtin types > 32 bits in size are forbidden in the restricted dialect")
	}
	return false
}

func (v *dialectRules) record(t *ast.RecordType, s dialectState) (dialectState, bool, bool) {
	d := t.Decl
	dt := v.c.table.SpecificType(typeName(v.c, t))

	if v.c.table.IsObject(dt) && !v.objectAllowed(s) {
		pos, name := locate(s.top, s.decl)
		report(v.c.diags, pos, diag.CodeDialectViolation,
			"arrays/structures containing RS object types cannot be exported in target API < %1: '%0'",
			name, config.APIJellyBean)
		return s, false, false
	}

	if dt != reflection.DataTypeUnknown {
		if s.union == nil {
			return s, false, true
		}
		if v.c.table.IsObject(dt) {
			pos, name := locate(s.union, nil)
			report(v.c.diags, pos, diag.CodeDialectViolation,
				"unions containing RS object types are not allowed: '%0'", name)
			return s, false, false
		}
	}

	next := s
	next.inComposite = true
	if d.Union {
		next.union = d
	}
	if next.top == nil {
		next.top = d
	}

	// Undefined records and flexible array members are shape problems;
	// exportability reports them.
	if !d.Defined || d.HasFlexibleArrayMember() {
		return s, false, true
	}
	return next, true, true
}

// objectAllowed implements the API gate for object handles nested in
// exported composites. Object handles behind a pointer are always fine.
func (v *dialectRules) objectAllowed(s dialectState) bool {
	if v.target.TargetAPI >= config.APIJellyBean || !s.inComposite {
		return true
	}
	vd, ok := s.decl.(*ast.VarDecl)
	if !ok || vd.Linkage != ast.ExternalLinkage {
		return true
	}
	_, isPtr := ast.Canonical(vd.Type).(*ast.PointerType)
	return isPtr
}

func (v *dialectRules) field(*ast.RecordType, *ast.FieldDecl, dialectState) bool {
	return true
}

func (v *dialectRules) pointer(t *ast.PointerType, s dialectState) (dialectState, bool) {
	if v.target.IsRestricted() && s.decl != nil {
		report(v.c.diags, s.pos, diag.CodeDialectViolation,
			"Pointers are forbidden in the restricted dialect: '%0'", s.decl.DeclName())
		return s, false
	}
	// Without a declaration this is an expression such as an argument to a
	// library call taking rs_matrix pointers. Call sites decide.
	return s, true
}

func (v *dialectRules) vector(t *ast.VectorType, s dialectState) (dialectState, bool) {
	if v.target.TargetAPI < config.APIIceCreamSandwich && s.inComposite && t.Len == 3 &&
		s.decl != nil && linkageOf(s.decl) == ast.ExternalLinkage {
		pos, name := locate(s.top, s.decl)
		report(v.c.diags, pos, diag.CodeDialectViolation,
			"structs containing vectors of dimension 3 cannot be exported at this API level: '%0'", name)
		return s, false
	}
	s.inComposite = true
	return s, true
}

func (v *dialectRules) array(t *ast.ConstantArrayType, s dialectState) (dialectState, bool) {
	s.inComposite = true
	return s, true
}

func (v *dialectRules) enum(t *ast.EnumType, _ dialectState) ast.Type {
	return t
}

func (v *dialectRules) other(ast.Type, dialectState) bool {
	return true
}

// ValidateType checks that t, used by decl at pos, is legal for the
// context's target API level and dialect. decl may be nil for types that
// appear in expressions. Violations are reported to the context's reporter.
func (c *Context) ValidateType(t ast.Type, decl ast.NamedDecl, pos ast.Position) bool {
	if t == nil {
		return true
	}
	rules := &dialectRules{c: c, target: c.target}
	s := dialectState{decl: decl, pos: pos}
	return newWalker[dialectState](visitSet{}, rules).walk(t, s) != nil
}

// ValidateVarDecl runs ValidateType over a variable declaration.
func (c *Context) ValidateVarDecl(vd *ast.VarDecl) bool {
	return c.ValidateType(vd.Type, vd, vd.Pos)
}

func linkageOf(d ast.NamedDecl) ast.Linkage {
	switch d := d.(type) {
	case *ast.VarDecl:
		return d.Linkage
	case *ast.FuncDecl:
		return d.Linkage
	}
	return ast.NoLinkage
}
