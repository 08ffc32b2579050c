package export

import (
	"strings"
	"testing"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
)

type fixture struct {
	ast   *ast.Context
	ctx   *Context
	diags *diag.List
}

func newFixture(target config.Target) *fixture {
	actx := ast.NewContext()
	diags := diag.NewList()
	return &fixture{ast: actx, ctx: New(actx, target, diags), diags: diags}
}

func target(width, api int, dialect config.Dialect) config.Target {
	return config.Target{PointerWidth: width, TargetAPI: api, Dialect: dialect}
}

func (f *fixture) builtin(k ast.BuiltinKind) ast.Type { return f.ast.Builtin(k) }

// object declares one of the runtime object typedefs the way the prelude
// does: a typedef of an anonymous struct holding a pointer.
func (f *fixture) object(name string) ast.Type {
	rec := f.ast.Record(&ast.RecordDecl{
		Defined: true,
		Fields:  []*ast.FieldDecl{ast.Field("p", f.ast.PointerTo(f.ast.IntType()))},
	})
	return f.ast.Typedef(name, rec)
}

func (f *fixture) matrix(name string, n int) ast.Type {
	arr := f.ast.ConstantArray(f.ast.Builtin(ast.Float), n)
	rec := f.ast.Record(&ast.RecordDecl{
		Defined: true,
		Fields:  []*ast.FieldDecl{ast.Field("m", arr)},
		Pos:     ast.Position{File: "rs_types.rsh", Line: 10},
	})
	return f.ast.Typedef(name, rec)
}

func (f *fixture) global(name string, t ast.Type) *ast.VarDecl {
	return &ast.VarDecl{
		Name:    name,
		Type:    t,
		Linkage: ast.ExternalLinkage,
		Pos:     ast.Position{File: "k.rs", Line: 1, Column: 1},
	}
}

func (f *fixture) create(t *testing.T, typ ast.Type) *ExportType {
	t.Helper()
	et, err := f.ctx.CreateType(typ)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, f.diags.Format())
	}
	return et
}

func (f *fixture) expectDiag(t *testing.T, code diag.Code, substr string) {
	t.Helper()
	for _, d := range f.diags.Errors() {
		if d.Code == code && strings.Contains(d.Message, substr) {
			return
		}
	}
	t.Errorf("expected a %s diagnostic containing %q, got:\n%s", code, substr, f.diags.Format())
}
