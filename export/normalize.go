package export

import (
	"strings"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/diag"
)

// constantArrayName identifies array shapes. Arrays are never interned.
var constantArrayName = CreateDummyName("ConstantArray", "")

// CreateDummyName builds a synthetic identity, "<kind>" or "<kind:name>".
// Descriptors with dummy names are never interned.
func CreateDummyName(kind, name string) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(kind)
	if name != "" {
		sb.WriteByte(':')
		sb.WriteString(name)
	}
	sb.WriteByte('>')
	return sb.String()
}

// IsDummyName reports whether name was made by CreateDummyName.
func IsDummyName(name string) bool {
	return strings.HasPrefix(name, "<")
}

// Normalize reduces t to its canonical exportable form and derives its
// identity name. decl, if not nil, is the declaration t was taken from and is
// used for diagnostics.
func (c *Context) Normalize(t ast.Type, decl ast.NamedDecl) (ast.Type, string, error) {
	return c.normalize(t, decl, c.diags)
}

func (c *Context) normalize(t ast.Type, decl ast.NamedDecl, r diag.Reporter) (ast.Type, string, error) {
	ct, err := c.isExportable(t, decl, r)
	if err != nil {
		return nil, "", err
	}
	name := typeName(c, ct)
	if name == "" {
		if decl != nil {
			return nil, "", report(r, decl.Location(), diag.CodeAnonymousType,
				"anonymous types cannot be exported: '%0'", decl.DeclName())
		}
		return nil, "", report(r, ast.Position{}, diag.CodeAnonymousType, "anonymous types cannot be exported")
	}
	return ct, name, nil
}

// TypeName derives the identity name of t, or "" if t has none.
func (c *Context) TypeName(t ast.Type) string {
	return typeName(c, t)
}

func typeName(c *Context, t ast.Type) string {
	switch t := ast.Canonical(t).(type) {
	case *ast.BuiltinType:
		if b := c.table.Builtin(t.Kind); b != nil {
			return b.CName[0]
		}
	case *ast.RecordType:
		if t.Decl.Union {
			return ""
		}
		return t.Decl.DeclName()
	case *ast.PointerType:
		// The pointee is normalized silently: a pointer is nameable iff its
		// pointee is exportable and nameable.
		_, name, err := c.normalize(t.Pointee, nil, diag.Discard)
		if err == nil {
			return "*" + name
		}
	case *ast.VectorType:
		return vectorName(c, t)
	case *ast.ConstantArrayType:
		return constantArrayName
	}
	return ""
}

func vectorName(c *Context, t *ast.VectorType) string {
	bt, ok := ast.Canonical(t.Elem).(*ast.BuiltinType)
	if !ok || t.Len < 1 {
		return ""
	}
	b := c.table.Builtin(bt.Kind)
	if b == nil || t.Len > len(b.CName) {
		return ""
	}
	return b.CName[t.Len-1]
}
