// Package cfront parses kernel sources with a C front end and lowers the
// declarations export cares about into the ast package.
package cfront

import (
	"fmt"

	"github.com/pkg/errors"
	"modernc.org/cc/v3"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
)

// Source is one kernel file.
type Source struct {
	Name  string
	Value string
}

// ABI returns the C ABI matching the target's pointer width.
func ABI(t config.Target) (cc.ABI, error) {
	arch := "arm"
	if t.Is64Bit() {
		arch = "arm64"
	}
	abi, err := cc.NewABI("linux", arch)
	if err != nil {
		return cc.ABI{}, errors.Wrapf(err, "when creating ABI for linux/%v", arch)
	}
	return abi, nil
}

// Translate parses sources after the prelude and returns the file-scope
// variables and function definitions they declare, in source order. Parse
// errors are returned; declarations whose types have no counterpart in ast
// are reported to r and skipped.
func Translate(t config.Target, sources []Source, r diag.Reporter) (*ast.Context, *ast.TranslationUnit, error) {
	if r == nil {
		r = diag.Discard
	}
	abi, err := ABI(t)
	if err != nil {
		return nil, nil, err
	}
	cfg := &cc.Config{ABI: abi}

	srcs := []cc.Source{{Name: PreludeName, Value: Prelude(), DoNotCache: true}}
	for _, s := range sources {
		srcs = append(srcs, cc.Source{Name: s.Name, Value: s.Value, DoNotCache: true})
	}
	tree, err := cc.Translate(cfg, nil, nil, srcs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "when parsing kernel sources")
	}

	l := newLowerer(r)
	for n := tree.TranslationUnit; n != nil; n = n.TranslationUnit {
		ed := n.ExternalDeclaration
		if ed == nil {
			continue
		}
		switch ed.Case {
		case cc.ExternalDeclarationFuncDef:
			l.funcDef(ed.FunctionDefinition.Declarator)
		case cc.ExternalDeclarationDecl:
			for il := ed.Declaration.InitDeclaratorList; il != nil; il = il.InitDeclaratorList {
				if il.InitDeclarator != nil {
					l.varDecl(il.InitDeclarator.Declarator)
				}
			}
		}
	}
	return l.ctx, l.tu, nil
}

type lowerer struct {
	ctx     *ast.Context
	tu      *ast.TranslationUnit
	r       diag.Reporter
	records map[interface{}]*ast.RecordType
}

func newLowerer(r diag.Reporter) *lowerer {
	return &lowerer{
		ctx:     ast.NewContext(),
		tu:      &ast.TranslationUnit{},
		r:       r,
		records: map[interface{}]*ast.RecordType{},
	}
}

func position(d *cc.Declarator) ast.Position {
	if d == nil {
		return ast.Position{}
	}
	p := d.Position()
	return ast.Position{File: p.Filename, Line: p.Line, Column: p.Column}
}

func linkage(d *cc.Declarator) ast.Linkage {
	switch d.Linkage {
	case cc.External:
		return ast.ExternalLinkage
	case cc.Internal:
		return ast.InternalLinkage
	}
	return ast.NoLinkage
}

func (l *lowerer) unsupported(pos ast.Position, name string, err error) {
	l.r.Report(pos, diag.CodeNotExportable, "type cannot be exported: '%0' (%1)", name, err)
}

func (l *lowerer) varDecl(d *cc.Declarator) {
	if d == nil || d.IsTypedefName {
		return
	}
	pos := position(d)
	if pos.File == PreludeName {
		return
	}
	t := d.Type()
	if t == nil || t.Kind() == cc.Function {
		return
	}
	name := d.Name().String()
	typ, err := l.lower(t)
	if err != nil {
		l.unsupported(pos, name, err)
		return
	}
	l.tu.Vars = append(l.tu.Vars, &ast.VarDecl{Name: name, Type: typ, Linkage: linkage(d), Pos: pos})
}

func (l *lowerer) funcDef(d *cc.Declarator) {
	if d == nil {
		return
	}
	pos := position(d)
	if pos.File == PreludeName {
		return
	}
	name := d.Name().String()
	ft := d.Type()
	fd := &ast.FuncDecl{Name: name, Linkage: linkage(d), Pos: pos}

	res, err := l.lower(ft.Result())
	if err != nil {
		l.unsupported(pos, name, err)
		return
	}
	fd.Result = res

	for i, p := range ft.Parameters() {
		pt := p.Type()
		if pt == nil || pt.Kind() == cc.Void {
			continue
		}
		pname := p.Name().String()
		if p.Name() == 0 {
			pname = fmt.Sprintf("arg%d", i)
		}
		ppos := pos
		if pd := p.Declarator(); pd != nil {
			ppos = position(pd)
		}
		typ, err := l.lower(pt)
		if err != nil {
			l.unsupported(ppos, pname, err)
			return
		}
		fd.Params = append(fd.Params, &ast.VarDecl{Name: pname, Type: typ, Pos: ppos})
	}
	l.tu.Funcs = append(l.tu.Funcs, fd)
}

var scalarKinds = map[cc.Kind]ast.BuiltinKind{
	cc.Void:       ast.Void,
	cc.Bool:       ast.Bool,
	cc.Char:       ast.CharS,
	cc.SChar:      ast.SChar,
	cc.UChar:      ast.UChar,
	cc.Short:      ast.Short,
	cc.UShort:     ast.UShort,
	cc.Int:        ast.Int,
	cc.UInt:       ast.UInt,
	cc.Long:       ast.Long,
	cc.ULong:      ast.ULong,
	cc.LongLong:   ast.LongLong,
	cc.ULongLong:  ast.ULongLong,
	cc.Float:      ast.Float,
	cc.Double:     ast.Double,
	cc.LongDouble: ast.LongDouble,
}

// lower converts a C type. Typedef names survive as ast.TypedefType so
// that anonymous records pick up their typedef name.
func (l *lowerer) lower(t cc.Type) (ast.Type, error) {
	if t == nil {
		return nil, errors.New("missing type")
	}
	if t.IsAliasType() {
		name := t.Name().String()
		if n, ok := vectorLens[name]; ok {
			elem, err := l.lower(t.Elem())
			if err != nil {
				return nil, errors.Wrapf(err, "when lowering element of '%v'", name)
			}
			return l.ctx.Vector(ast.Canonical(elem), n), nil
		}
		under, err := l.lower(t.Alias())
		if err != nil {
			return nil, errors.Wrapf(err, "when lowering typedef '%v'", name)
		}
		return l.ctx.Typedef(name, under), nil
	}

	if k, ok := scalarKinds[t.Kind()]; ok {
		// long follows the ABI and is as wide as long long on 64-bit targets.
		if t.Size() == 8 {
			switch k {
			case ast.Long:
				k = ast.LongLong
			case ast.ULong:
				k = ast.ULongLong
			}
		}
		return l.ctx.Builtin(k), nil
	}

	switch t.Kind() {
	case cc.Ptr:
		pointee, err := l.lower(t.Elem())
		if err != nil {
			return nil, errors.Wrap(err, "when lowering pointee")
		}
		return l.ctx.PointerTo(pointee), nil

	case cc.Vector:
		elem, err := l.lower(t.Elem())
		if err != nil {
			return nil, errors.Wrap(err, "when lowering vector element")
		}
		return l.ctx.Vector(ast.Canonical(elem), int(t.Len())), nil

	case cc.Array:
		elem, err := l.lower(t.Elem())
		if err != nil {
			return nil, errors.Wrap(err, "when lowering array element")
		}
		if t.IsIncomplete() || t.IsVLA() {
			return l.ctx.IncompleteArray(elem), nil
		}
		return l.ctx.ConstantArray(elem, int(t.Len())), nil

	case cc.Struct, cc.Union:
		return l.record(t)

	case cc.Enum:
		return l.ctx.Enum(t.Tag().String()), nil

	case cc.Function:
		res, err := l.lower(t.Result())
		if err != nil {
			return nil, errors.Wrap(err, "when lowering result")
		}
		return &ast.FunctionType{Result: res}, nil
	}
	return nil, errors.Errorf("unsupported C type %v (%v)", t, t.Kind())
}

func recordKey(t cc.Type) interface{} {
	if tag := t.Tag(); tag != 0 {
		return fmt.Sprintf("%v %v", t.Kind(), tag)
	}
	return t
}

// record registers the declaration before lowering fields, so records
// reachable from their own fields resolve to the same type.
func (l *lowerer) record(t cc.Type) (ast.Type, error) {
	key := recordKey(t)
	if rt, ok := l.records[key]; ok {
		return rt, nil
	}

	d := &ast.RecordDecl{
		Name:    t.Tag().String(),
		Union:   t.Kind() == cc.Union,
		Defined: !t.IsIncomplete(),
	}
	if t.Tag() == 0 {
		d.Name = ""
	}
	rt := l.ctx.Record(d)
	l.records[key] = rt
	l.tu.Records = append(l.tu.Records, d)
	if !d.Defined {
		return rt, nil
	}

	maxFieldAlign := 1
	for i := 0; i < t.NumField(); i++ {
		f := t.FieldByIndex([]int{i})
		fd := &ast.FieldDecl{Name: f.Name().String()}
		if f.Name() == 0 {
			fd.Name = ""
		}
		if sd := f.Declarator(); sd != nil && sd.Declarator != nil {
			fd.Pos = position(sd.Declarator)
			if !d.Pos.IsValid() {
				d.Pos = fd.Pos
			}
		}
		if f.IsBitField() {
			fd.BitField = true
			fd.BitWidth = f.BitFieldWidth()
		}
		typ, err := l.lower(f.Type())
		if err != nil {
			return nil, errors.Wrapf(err, "when lowering field '%v'", fd.Name)
		}
		fd.Type = typ
		if !f.IsFlexible() && !f.IsBitField() {
			if a := f.Type().Align(); a > maxFieldAlign {
				maxFieldAlign = a
			}
		}
		d.Fields = append(d.Fields, fd)
	}
	d.Packed = t.Align() == 1 && maxFieldAlign > 1
	return rt, nil
}
