// Package compile drives export over one translation unit.
package compile

import (
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/cfront"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/export"
)

// Result is everything a successful compilation exports.
type Result struct {
	Target config.Target
	Vars   []*export.Var
	Funcs  []*export.Func
	// Types are the kept descriptors in creation order, including the
	// artificial parameter records.
	Types []*export.ExportType

	ctx *export.Context
}

// Context is the export context the result was built with.
func (r *Result) Context() *export.Context { return r.ctx }

// Run exports every declaration of tu in source order. A failing
// declaration does not stop the ones after it, but any error diagnostic
// makes Run return an error and no result.
func Run(target config.Target, actx *ast.Context, tu *ast.TranslationUnit, diags *diag.List) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, errors.Wrap(err, "when validating target")
	}
	if diags == nil {
		diags = diag.NewList()
	}
	ctx := export.New(actx, target, diags)
	ret := &Result{Target: target, ctx: ctx}

	for _, vd := range tu.Vars {
		if vd.Linkage != ast.ExternalLinkage {
			ctx.ValidateVarDecl(vd)
			continue
		}
		v, err := ctx.ExportVar(vd)
		if err != nil {
			continue
		}
		ret.Vars = append(ret.Vars, v)
	}

	for _, fd := range tu.Funcs {
		if fd.Linkage == ast.InternalLinkage {
			continue
		}
		fn, err := ctx.ExportFunc(fd)
		if err != nil {
			continue
		}
		ret.Funcs = append(ret.Funcs, fn)
	}

	if diags.HasErrors() {
		return nil, errors.Wrapf(diags.Err(), "when exporting (%v errors)", len(diags.Errors()))
	}
	ret.Types = ctx.Kept()
	return ret, nil
}

// Sources parses sources with the C front end and runs export over them.
func Sources(target config.Target, sources []cfront.Source, diags *diag.List) (*Result, error) {
	if diags == nil {
		diags = diag.NewList()
	}
	actx, tu, err := cfront.Translate(target, sources, diags)
	if err != nil {
		return nil, errors.Wrap(err, "when translating sources")
	}
	return Run(target, actx, tu, diags)
}
