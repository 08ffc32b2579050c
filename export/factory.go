package export

import (
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

// Create returns the descriptor for the normalized type t named name,
// building it on first request. Descriptors are interned by name: asking
// twice for the same name yields the same *ExportType.
func (c *Context) Create(t ast.Type, name string) (*ExportType, error) {
	return c.create(t, name, nil)
}

// create is Create with the declaration nested diagnostics point at.
func (c *Context) create(t ast.Type, name string, decl ast.NamedDecl) (*ExportType, error) {
	if et := c.Lookup(name); et != nil {
		return et, nil
	}

	switch t := ast.Canonical(t).(type) {
	case *ast.RecordType:
		dt := c.table.SpecificType(name)
		switch {
		case dt == reflection.DataTypeUnknown:
			return c.createRecord(t, name, false)
		case c.table.IsMatrix(dt):
			return c.createMatrix(t, name, reflection.MatrixDim(dt))
		}
		return c.createPrimitive(t, name)
	case *ast.BuiltinType:
		return c.createPrimitive(t, name)
	case *ast.PointerType:
		return c.createPointer(t, name, decl)
	case *ast.VectorType:
		return c.createVector(t, name)
	case *ast.ConstantArrayType:
		return c.createArray(t, decl)
	case nil:
		return nil, report(c.diags, ast.Position{}, diag.CodeInternal, "missing type for '%0'", name)
	default:
		return nil, report(c.diags, ast.Position{}, diag.CodeInternal,
			"unknown type cannot be exported: '%0'", t.Class())
	}
}

// CreateType normalizes t and creates its descriptor.
func (c *Context) CreateType(t ast.Type) (*ExportType, error) {
	return c.createFor(t, nil)
}

// CreateFromDecl creates the descriptor for the type of a declaration.
// Diagnostics point at d.
func (c *Context) CreateFromDecl(d *ast.VarDecl) (*ExportType, error) {
	return c.createFor(d.Type, d)
}

func (c *Context) createFor(t ast.Type, decl ast.NamedDecl) (*ExportType, error) {
	ct, name, err := c.Normalize(t, decl)
	if err != nil {
		return nil, err
	}
	et, err := c.create(ct, name, decl)
	if err != nil {
		return nil, err
	}
	if p := et.Primitive(); p != nil {
		p.Normalized = true
	}
	return et, nil
}

func (c *Context) dataType(t ast.Type, name string) (reflection.DataType, error) {
	switch t := ast.Canonical(t).(type) {
	case *ast.BuiltinType:
		if b := c.table.Builtin(t.Kind); b != nil {
			return b.Type, nil
		}
		return reflection.DataTypeUnknown, report(c.diags, ast.Position{}, diag.CodeNotExportable,
			"built-in type cannot be exported: '%0'", t.Kind)
	case *ast.RecordType:
		if dt := c.table.SpecificType(t.Decl.DeclName()); dt != reflection.DataTypeUnknown {
			return dt, nil
		}
	}
	return reflection.DataTypeUnknown, report(c.diags, ast.Position{}, diag.CodeNotExportable,
		"primitive type cannot be exported: '%0'", name)
}

func (c *Context) createPrimitive(t ast.Type, name string) (*ExportType, error) {
	dt, err := c.dataType(t, name)
	if err != nil {
		return nil, err
	}
	return c.add(name, &Primitive{Type: dt}), nil
}

// createPointer collapses two or more levels of indirection to int*.
func (c *Context) createPointer(t *ast.PointerType, name string, decl ast.NamedDecl) (*ExportType, error) {
	target := t.Pointee
	if _, ok := ast.Canonical(target).(*ast.PointerType); ok {
		target = c.ast.IntType()
	}
	pointee, err := c.createNested(target, decl)
	if err != nil {
		return nil, errors.Wrapf(err, "when creating pointee of '%v'", name)
	}
	if et := c.Lookup(name); et != nil {
		return et, nil
	}
	return c.add(name, &Pointer{Pointee: pointee.handle}), nil
}

func (c *Context) createVector(t *ast.VectorType, name string) (*ExportType, error) {
	dt, err := c.dataType(t.Elem, name)
	if err != nil {
		return nil, err
	}
	return c.add(name, &Vector{Primitive: Primitive{Type: dt}, Len: t.Len}), nil
}

// createMatrix checks that the record is exactly { float m[dim*dim]; }.
// Forward declarations are taken on trust.
func (c *Context) createMatrix(t *ast.RecordType, name string, dim int) (*ExportType, error) {
	d := t.Decl
	if d.Defined {
		bad := func(template string, args ...interface{}) (*ExportType, error) {
			return nil, report(c.diags, d.Pos, diag.CodeMalformedSpecialType, template, args...)
		}
		if len(d.Fields) == 0 {
			return bad("invalid matrix struct: must have 1 field for saving values: '%0'", d.DeclName())
		}
		arr, ok := ast.Canonical(d.Fields[0].Type).(*ast.ConstantArrayType)
		if !ok {
			return bad("invalid matrix struct: first field should be an array with constant size: '%0'", d.DeclName())
		}
		if bt, ok := ast.Canonical(arr.Elem).(*ast.BuiltinType); !ok || bt.Kind != ast.Float {
			return bad("invalid matrix struct: first field should be a float array: '%0'", d.DeclName())
		}
		if arr.Len != dim*dim {
			return bad("invalid matrix struct: first field should be an array with size %0: '%1'", dim*dim, d.DeclName())
		}
		if len(d.Fields) != 1 {
			return bad("invalid matrix struct: must have exactly 1 field: '%0'", d.DeclName())
		}
	}
	return c.add(name, &Matrix{Dim: dim}), nil
}

func (c *Context) createArray(t *ast.ConstantArrayType, decl ast.NamedDecl) (*ExportType, error) {
	if t.Len <= 0 {
		return nil, report(c.diags, declPos(decl), diag.CodeInternal,
			"constant array should have size greater than 0: '%0'", t)
	}
	elem, err := c.createNested(t.Elem, decl)
	if err != nil {
		return nil, errors.Wrapf(err, "when creating element of '%v'", t)
	}
	return c.add(constantArrayName, &ConstantArray{Elem: elem.handle, Len: t.Len}), nil
}

// createRecord registers the record before creating its field types so that
// a field pointing back at the record resolves to it. A failing field undoes
// everything registered since.
func (c *Context) createRecord(t *ast.RecordType, name string, artificial bool) (*ExportType, error) {
	d := t.Decl
	if d.Union || !d.Defined {
		return nil, report(c.diags, d.Pos, diag.CodeInternal, "struct is not defined in this module: '%0'", name)
	}

	m := c.mark()
	rec := &Record{Packed: d.Packed, Artificial: artificial}
	et := c.add(name, rec)

	for _, fd := range d.Fields {
		if fd.BitField {
			c.rollback(m)
			return nil, report(c.diags, fd.Pos, diag.CodeNotExportable,
				"bit fields are not able to be exported: '%0.%1'", name, fd.Name)
		}
		ft, err := c.createField(fd)
		if err != nil {
			c.rollback(m)
			return nil, errors.Wrapf(err, "when creating field '%v.%v'", name, fd.Name)
		}
		rec.Fields = append(rec.Fields, &Field{
			Name:   fd.Name,
			typ:    ft.handle,
			parent: et.handle,
			ctx:    c,
		})
	}
	et.layoutRecord()
	return et, nil
}

// createField builds the descriptor of a field's type. A pointer back at an
// enclosing record resolves to that record's placeholder.
func (c *Context) createField(fd *ast.FieldDecl) (*ExportType, error) {
	if pt, ok := ast.Canonical(fd.Type).(*ast.PointerType); ok {
		if rt, ok := ast.Canonical(pt.Pointee).(*ast.RecordType); ok {
			if pointee := c.Lookup(rt.Decl.DeclName()); pointee != nil && pointee.Class() == ClassRecord {
				return c.pointerTo(pointee), nil
			}
		}
	}
	return c.createNested(fd.Type, fd)
}

// createNested creates the descriptor of a type nested in one that was
// already normalized as a whole, so exportability is not checked again.
func (c *Context) createNested(t ast.Type, decl ast.NamedDecl) (*ExportType, error) {
	ct := ast.Canonical(t)
	if _, ok := ct.(*ast.EnumType); ok {
		ct = c.ast.IntType()
	}
	name := typeName(c, ct)
	if name == "" {
		pos, declName := locate(nil, decl)
		return nil, report(c.diags, pos, diag.CodeAnonymousType, "anonymous types cannot be exported: '%0'", declName)
	}
	return c.create(ct, name, decl)
}

func (c *Context) pointerTo(pointee *ExportType) *ExportType {
	name := "*" + pointee.name
	if et := c.Lookup(name); et != nil {
		return et
	}
	return c.add(name, &Pointer{Pointee: pointee.handle})
}
