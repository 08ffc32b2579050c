package export

import (
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

// ReflectionData is the flat description of a non-record descriptor used in
// runtime metadata.
type ReflectionData struct {
	Type      *reflection.Type
	VecSize   int
	IsPointer bool
	ArraySize int
}

// ReflectionData flattens et. Pointers and arrays describe their target and
// set IsPointer or ArraySize. Records have no flat form.
func (et *ExportType) ReflectionData() (ReflectionData, error) {
	rtd := ReflectionData{VecSize: 1}
	err := et.fillReflectionData(&rtd)
	return rtd, err
}

func (et *ExportType) fillReflectionData(rtd *ReflectionData) error {
	switch in := et.inner.(type) {
	case *Primitive:
		rtd.Type = et.ctx.table.Lookup(in.Type)
	case *Pointer:
		if err := et.Pointee().fillReflectionData(rtd); err != nil {
			return err
		}
		rtd.IsPointer = true
	case *Vector:
		rtd.Type = et.ctx.table.Lookup(in.Type)
		rtd.VecSize = in.Len
	case *Matrix:
		rtd.Type = et.ctx.table.Lookup(reflection.MatrixType(in.Dim))
	case *ConstantArray:
		if err := et.Elem().fillReflectionData(rtd); err != nil {
			return err
		}
		rtd.ArraySize = in.Len
	case *Record:
		return errors.Wrapf(diag.ErrInternal, "record '%v' has no flat reflection data", et.name)
	}
	return nil
}

// ContainsObject reports whether t is a struct, or an array of structs,
// holding an object handle or a matrix at any depth. Such values must be
// zero-initialized by generated code. Pointers are not followed.
func (c *Context) ContainsObject(t ast.Type) bool {
	rt, ok := stripArrays(t).(*ast.RecordType)
	if !ok || rt.Decl.Union || !rt.Decl.Defined {
		return false
	}
	for _, f := range rt.Decl.Fields {
		ft := stripArrays(f.Type)
		if frt, ok := ft.(*ast.RecordType); ok {
			dt := c.table.SpecificType(frt.Decl.DeclName())
			if c.table.IsObject(dt) || c.table.IsMatrix(dt) {
				return true
			}
			if c.ContainsObject(frt) {
				return true
			}
		}
	}
	return false
}

func stripArrays(t ast.Type) ast.Type {
	t = ast.Canonical(t)
	for {
		switch at := t.(type) {
		case *ast.ConstantArrayType:
			t = ast.Canonical(at.Elem)
		case *ast.IncompleteArrayType:
			t = ast.Canonical(at.Elem)
		default:
			return t
		}
	}
}

// ContainsObject is the descriptor form of Context.ContainsObject.
func (et *ExportType) ContainsObject() bool {
	switch in := et.inner.(type) {
	case *ConstantArray:
		return et.Elem().ContainsObject()
	case *Record:
		for _, f := range in.Fields {
			ft := f.Type()
			for ft.Class() == ClassConstantArray {
				ft = ft.Elem()
			}
			if ft.IsObject() || ft.Class() == ClassMatrix {
				return true
			}
			if ft.Class() == ClassRecord && ft.ContainsObject() {
				return true
			}
		}
	}
	return false
}
