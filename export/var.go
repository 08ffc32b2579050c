package export

import (
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/diag"
)

// Var is an exported global variable.
type Var struct {
	Name string
	Type *ExportType
	Decl *ast.VarDecl
}

// ExportVar validates vd against the target, creates its descriptor and
// keeps it.
func (c *Context) ExportVar(vd *ast.VarDecl) (*Var, error) {
	if !c.ValidateVarDecl(vd) {
		return nil, errors.Wrapf(diag.ErrDialectViolation, "when validating '%v'", vd.Name)
	}
	et, err := c.CreateFromDecl(vd)
	if err != nil {
		return nil, errors.Wrapf(err, "when exporting '%v'", vd.Name)
	}
	et.Keep()
	return &Var{Name: vd.Name, Type: et, Decl: vd}, nil
}

// Func is an exported kernel or invokable function.
type Func struct {
	Name   string
	Params []*Var
	// ParamPack is the artificial record that passes the parameters in one
	// buffer; nil for functions without parameters.
	ParamPack *ExportType
	Decl      *ast.FuncDecl
}

// ExportFunc exports each parameter as a top-level declaration, so pointer
// parameters are allowed, then packs them into an artificial record named
// after the function. Every parameter is checked even after a failure.
func (c *Context) ExportFunc(fd *ast.FuncDecl) (*Func, error) {
	ret := &Func{Name: fd.Name, Decl: fd}
	var firstErr error
	for _, p := range fd.Params {
		v, err := c.ExportVar(p)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "when exporting parameter of '%v'", fd.Name)
			}
			continue
		}
		ret.Params = append(ret.Params, v)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(ret.Params) > 0 {
		ret.ParamPack = c.createParamPack(fd.Name, ret.Params)
		ret.ParamPack.Keep()
	}
	return ret, nil
}

// createParamPack builds the artificial record. Its dummy name keeps it out
// of the intern table.
func (c *Context) createParamPack(fn string, params []*Var) *ExportType {
	rec := &Record{Artificial: true}
	et := c.add(CreateDummyName("helper_struct", fn), rec)
	for _, p := range params {
		rec.Fields = append(rec.Fields, &Field{
			Name:   p.Name,
			typ:    p.Type.handle,
			parent: et.handle,
			ctx:    c,
		})
	}
	et.layoutRecord()
	return et
}
